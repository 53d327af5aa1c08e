package models

import (
	"github.com/smazurov/statuslight/internal/led"
	"github.com/smazurov/statuslight/internal/logging"
	"github.com/smazurov/statuslight/internal/systemd"
	"github.com/smazurov/statuslight/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.Info
}

// Status models
type StatusData struct {
	Status           string `json:"status" example:"normal" doc:"Displayed status"`
	Animation        string `json:"animation" example:"breathing" doc:"Animation of the displayed status"`
	Priority         string `json:"priority" example:"function" doc:"Priority of the displayed status"`
	Brightness       uint8  `json:"brightness" example:"255" doc:"Status brightness 0-255"`
	GlobalBrightness uint8  `json:"global_brightness" example:"128" doc:"Global brightness 0-255"`
	DurationMs       int64  `json:"duration_ms" example:"2000" doc:"Display duration, 0 for indefinite"`
	Frame            uint32 `json:"frame" example:"42" doc:"Animation frame counter"`
	Animating        bool   `json:"animating" doc:"Whether the frame clock advances this status"`
	Expired          bool   `json:"expired" doc:"Duration elapsed but the return to normal was not applied"`
	AutoBrightness   bool   `json:"auto_brightness" doc:"Auto-brightness flag"`
	Color            string `json:"color" example:"#00ff00" doc:"Last color pushed to the LED"`
}

type StatusResponse struct {
	Body StatusData
}

type SetStatusRequest struct {
	Body struct {
		Status     string `json:"status" enum:"error,warning,normal,config,recording,playing,startup,off" doc:"Status to display"`
		Animation  string `json:"animation,omitempty" default:"none" enum:"none,breathing,blinking,fade,rainbow,fade_in_out" doc:"Animation"`
		Priority   string `json:"priority,omitempty" default:"normal" enum:"normal,function,warning,error" doc:"Request priority"`
		DurationMs int64  `json:"duration_ms,omitempty" minimum:"0" doc:"Display duration in milliseconds, 0 for indefinite"`
	}
}

type SetStatusResponse struct {
	Body struct {
		Accepted bool       `json:"accepted" doc:"False when a higher-priority status is displayed"`
		Current  StatusData `json:"current" doc:"State after the request"`
	}
}

type BrightnessRequest struct {
	Body struct {
		Brightness int `json:"brightness" minimum:"0" maximum:"255" example:"128" doc:"Global brightness"`
	}
}

type EnabledRequest struct {
	Body struct {
		Enabled bool `json:"enabled" doc:"Enable or disable"`
	}
}

// Sync models
type SendEventRequest struct {
	Body struct {
		Type    string `json:"type" example:"wifi-connected" doc:"Sync event type"`
		Payload []byte `json:"payload,omitempty" doc:"Optional event payload (base64)"`
	}
}

type SendEventResponse struct {
	Body struct {
		Queued      bool `json:"queued" doc:"Whether an event was queued"`
		QueueLength int  `json:"queue_length" example:"1" doc:"Events waiting after the request"`
	}
}

type BatteryRequest struct {
	Body struct {
		Level    int  `json:"level" minimum:"0" maximum:"100" example:"15" doc:"Battery level in percent"`
		Charging bool `json:"charging" doc:"Whether the battery is charging"`
	}
}

type FeedbackRequest struct {
	Body struct {
		Brightness int   `json:"brightness" minimum:"0" maximum:"255" example:"255" doc:"Feedback brightness"`
		DurationMs int64 `json:"duration_ms" minimum:"0" example:"300" doc:"Feedback duration in milliseconds"`
	}
}

type SyncSettingsData struct {
	AutoSync           bool  `json:"auto_sync" doc:"Whether events are dispatched"`
	FeedbackBrightness uint8 `json:"feedback_brightness" example:"255" doc:"Button feedback brightness"`
	FeedbackDurationMs int64 `json:"feedback_duration_ms" example:"300" doc:"Button feedback duration"`
	QueueLength        int   `json:"queue_length" example:"0" doc:"Events waiting"`
	QueueCapacity      int   `json:"queue_capacity" example:"20" doc:"Queue capacity"`
}

type SyncSettingsResponse struct {
	Body SyncSettingsData
}

// LED models
type LEDData struct {
	Driver led.Info `json:"driver" doc:"Active LED driver"`
	Pixels []string `json:"pixels" example:"[\"#000080\"]" doc:"Pixel buffer read-back"`
}

type LEDResponse struct {
	Body LEDData
}

// Log models
type LogsRequest struct {
	Limit int `query:"limit" default:"100" minimum:"1" maximum:"500" doc:"Maximum number of entries"`
}

type LogsResponse struct {
	Body struct {
		Entries []logging.Entry `json:"entries" doc:"Most recent log entries, oldest first"`
	}
}

type LogLevelRequest struct {
	Body struct {
		Module string `json:"module,omitempty" example:"status" doc:"Module name, empty for the global level"`
		Level  string `json:"level" enum:"debug,info,warn,error" doc:"New level"`
	}
}

type LogLevelsResponse struct {
	Body struct {
		Levels map[string]string `json:"levels" doc:"Effective level per module, \"default\" is the global level"`
	}
}

// systemd models
type ServiceStatusResponse struct {
	Body systemd.UnitStatus
}

type ServiceActionResponse struct {
	Body struct {
		Unit    string `json:"unit" example:"statuslight.service" doc:"Unit name"`
		Action  string `json:"action" example:"restart" doc:"Action performed"`
		Success bool   `json:"success" example:"true" doc:"Whether the action was queued"`
	}
}
