package config

import "log/slog"

// migrateSettings fills in defaults for fields that are missing or invalid
// in older or hand-edited settings files.
func migrateSettings(s *Settings) {
	def := DefaultSettings()

	if s.Transport == "" {
		s.Transport = def.Transport
	} else if !validTransport(s.Transport) {
		slog.Warn("config: unknown transport, using default", "transport", s.Transport, "default", def.Transport)
		s.Transport = def.Transport
	}
	if s.Adapter < 0 {
		slog.Warn("config: invalid adapter index, fixing", "adapter", s.Adapter)
		s.Adapter = 0
	}
	if s.CallTimeoutMs <= 0 {
		s.CallTimeoutMs = def.CallTimeoutMs
	}
	if s.CallsPerSecond < 0 {
		s.CallsPerSecond = def.CallsPerSecond
	}
	if s.CallBurst < 1 {
		s.CallBurst = def.CallBurst
	}
	if s.ConsoleBaud <= 0 {
		s.ConsoleBaud = def.ConsoleBaud
	}
	if s.ResetHoldMs <= 0 {
		s.ResetHoldMs = def.ResetHoldMs
	}
	if s.ResetSettleMs < 0 {
		s.ResetSettleMs = def.ResetSettleMs
	}
	if s.APIAddr == "" {
		s.APIAddr = def.APIAddr
	}
	if s.HistoryFile == "" {
		s.HistoryFile = def.HistoryFile
	}
	if s.HistoryKeep <= 0 {
		s.HistoryKeep = def.HistoryKeep
	}
	if s.ScheduleMinutes < 0 {
		s.ScheduleMinutes = 0
	}
	if s.ProbeSec <= 0 {
		s.ProbeSec = def.ProbeSec
	}
}
