package config

import (
	"os"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/ReconfigureIO/logruzio"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// SetupLogging configures the standard logger: text on a terminal, JSON
// otherwise, plus the logz.io and GELF hooks when they are configured.
func SetupLogging(version string, conf *Config) error {
	level, err := logrus.ParseLevel(conf.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(formatter(isatty.IsTerminal(os.Stderr.Fd())))

	ctx := logrus.Fields{
		"Environment": conf.Env,
		"Version":     version,
		"Application": conf.ProgramName,
	}
	if conf.Log.LogzioToken != "" {
		hook, err := logruzio.New(conf.Log.LogzioToken, conf.ProgramName, ctx)
		if err != nil {
			return err
		}
		logrus.AddHook(hook)
	}
	if conf.Log.GelfAddr != "" {
		w, err := gelf.NewUDPWriter(conf.Log.GelfAddr)
		if err != nil {
			return err
		}
		logrus.AddHook(NewGelfHook(w, conf.ProgramName, ctx))
	}
	return nil
}

func formatter(tty bool) logrus.Formatter {
	if tty {
		return &logrus.TextFormatter{FullTimestamp: true}
	}
	return &logrus.JSONFormatter{}
}

// MessageWriter sends GELF messages. *gelf.UDPWriter implements it.
type MessageWriter interface {
	WriteMessage(m *gelf.Message) error
}

// GelfHook forwards log entries to a GELF endpoint.
type GelfHook struct {
	w      MessageWriter
	host   string
	fields logrus.Fields
}

// NewGelfHook returns a hook sending entries through w, tagged with
// fields.
func NewGelfHook(w MessageWriter, facility string, fields logrus.Fields) *GelfHook {
	host, _ := os.Hostname()
	f := logrus.Fields{"facility": facility}
	for k, v := range fields {
		f[k] = v
	}
	return &GelfHook{w: w, host: host, fields: f}
}

func (h *GelfHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *GelfHook) Fire(entry *logrus.Entry) error {
	extra := map[string]interface{}{}
	for k, v := range h.fields {
		extra["_"+k] = v
	}
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		extra["_"+k] = v
	}
	return h.w.WriteMessage(&gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    entry.Message,
		TimeUnix: float64(entry.Time.UnixNano()) / 1e9,
		Level:    syslogLevel(entry.Level),
		Extra:    extra,
	})
}

// syslogLevel maps logrus levels onto the syslog severities GELF uses.
func syslogLevel(l logrus.Level) int32 {
	switch l {
	case logrus.PanicLevel:
		return 0
	case logrus.FatalLevel:
		return 2
	case logrus.ErrorLevel:
		return 3
	case logrus.WarnLevel:
		return 4
	case logrus.InfoLevel:
		return 6
	default:
		return 7
	}
}
