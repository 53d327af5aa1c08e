package syncbus

import "encoding/binary"

// LowBatteryLevel is the level below which HandleBatteryStatus reports
// battery-low.
const LowBatteryLevel = 20

// HandleWifiConnecting sends wifi-connecting.
func (b *Bus) HandleWifiConnecting() error {
	return b.SendEvent(WifiConnecting, nil)
}

// HandleWifiStatus sends wifi-connected or wifi-disconnected.
func (b *Bus) HandleWifiStatus(connected bool) error {
	if connected {
		return b.SendEvent(WifiConnected, nil)
	}
	return b.SendEvent(WifiDisconnected, nil)
}

// HandleAudioStatus sends audio-recording, audio-playing or audio-stopped.
// Recording wins over playing.
func (b *Bus) HandleAudioStatus(playing, recording bool) error {
	switch {
	case recording:
		return b.SendEvent(AudioRecording, nil)
	case playing:
		return b.SendEvent(AudioPlaying, nil)
	default:
		return b.SendEvent(AudioStopped, nil)
	}
}

// HandleButtonEvent sends button-pressed or button-released with the button
// id as a one byte payload.
func (b *Bus) HandleButtonEvent(id uint8, pressed bool) error {
	t := ButtonReleased
	if pressed {
		t = ButtonPressed
	}
	return b.SendEvent(t, []byte{id})
}

// HandleWebsocketStatus sends websocket-connected or websocket-disconnected.
func (b *Bus) HandleWebsocketStatus(connected bool) error {
	if connected {
		return b.SendEvent(WebsocketConnected, nil)
	}
	return b.SendEvent(WebsocketDisconnected, nil)
}

// HandleWebsocketMessage sends websocket-message with the message kind as
// payload.
func (b *Bus) HandleWebsocketMessage(kind string) error {
	return b.SendEvent(WebsocketMessage, []byte(kind))
}

// HandleBatteryStatus sends battery-charging when charging, battery-low when
// level is below LowBatteryLevel, and nothing otherwise. The payload is the
// level.
func (b *Bus) HandleBatteryStatus(level uint8, charging bool) error {
	switch {
	case charging:
		return b.SendEvent(BatteryCharging, []byte{level})
	case level < LowBatteryLevel:
		return b.SendEvent(BatteryLow, []byte{level})
	default:
		return nil
	}
}

// HandleSystemError sends system-error with the code as payload. The message
// is logged only.
func (b *Bus) HandleSystemError(code uint32, msg string) error {
	b.logger.Error("System error reported", "code", code, "message", msg)
	return b.SendEvent(SystemError, encodeCode(code))
}

// HandleSystemWarning sends system-warning with the code as payload. The
// message is logged only.
func (b *Bus) HandleSystemWarning(code uint32, msg string) error {
	b.logger.Warn("System warning reported", "code", code, "message", msg)
	return b.SendEvent(SystemWarning, encodeCode(code))
}

// HandleSystemStartup sends system-startup.
func (b *Bus) HandleSystemStartup() error {
	return b.SendEvent(SystemStartup, nil)
}

// HandleSystemShutdown sends system-shutdown.
func (b *Bus) HandleSystemShutdown() error {
	return b.SendEvent(SystemShutdown, nil)
}

func encodeCode(code uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, code)
}

// ButtonID returns the button id carried by a button event, or 0.
func ButtonID(ev Event) uint8 {
	if len(ev.Payload) < 1 {
		return 0
	}
	return ev.Payload[0]
}

// BatteryLevel returns the level carried by a battery event.
func BatteryLevel(ev Event) (uint8, bool) {
	if len(ev.Payload) < 1 {
		return 0, false
	}
	return ev.Payload[0], true
}

// Code returns the code carried by a system-error or system-warning event.
func Code(ev Event) (uint32, bool) {
	if len(ev.Payload) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(ev.Payload), true
}
