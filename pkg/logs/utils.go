package logs

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// formatter adds default fields to each log entry.
type formatter struct {
	owner string
	lf    log.Formatter
}

// Format satisfies the log.Formatter interface.
func (f *formatter) Format(e *log.Entry) ([]byte, error) {
	e.Message = fmt.Sprintf("[%s] %s", f.owner, e.Message)
	return f.lf.Format(e)
}

// NewLogger returns a logger whose entries are prefixed with the owner
// component name. The level can be overridden through BOXTIMER_LOG_LEVEL.
func NewLogger(owner string) *log.Logger {
	logger := log.New()
	logger.SetFormatter(&formatter{
		owner: owner,
		lf: &log.TextFormatter{
			ForceColors:     true,
			FullTimestamp:   true,
			TimestampFormat: time.StampMilli,
		},
	})
	if lvl, err := log.ParseLevel(os.Getenv("BOXTIMER_LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}
