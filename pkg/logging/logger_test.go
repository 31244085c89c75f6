package logging

import "testing"

type recordingLogger struct {
	infos []string
}

func (r *recordingLogger) Debug(msg string, args ...interface{}) {}
func (r *recordingLogger) Info(msg string, args ...interface{})  { r.infos = append(r.infos, msg) }
func (r *recordingLogger) Warn(msg string, args ...interface{})  {}
func (r *recordingLogger) Error(msg string, args ...interface{}) {}

func TestNoOpLoggerDiscardsEverything(t *testing.T) {
	var l Logger = &NoOpLogger{}
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
}

func TestLoggerInterfaceSatisfiedByRecorder(t *testing.T) {
	var l Logger = &recordingLogger{}
	l.Info("hello")
	rec := l.(*recordingLogger)
	if len(rec.infos) != 1 || rec.infos[0] != "hello" {
		t.Fatalf("expected one recorded info message, got %v", rec.infos)
	}
}
