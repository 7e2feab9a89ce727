package readcache

import (
	"testing"

	"github.com/Voskan/faster-readcache/internal/mainlog"
)

func TestValidateRequiresMainLog(t *testing.T) {
	c := defaultConfig()
	if err := c.validate(); err != errMissingMainLog {
		t.Errorf("validate() = %v, want errMissingMainLog", err)
	}
}

func TestValidateRejectsBadPageSize(t *testing.T) {
	c := defaultConfig()
	c.hlog = mainlog.New(nil)
	c.pageSize = 0
	if err := c.validate(); err != errInvalidPageSize {
		t.Errorf("validate() = %v, want errInvalidPageSize", err)
	}
}

func TestValidateRejectsBadSecondChanceFraction(t *testing.T) {
	c := defaultConfig()
	c.hlog = mainlog.New(nil)
	c.secondChanceFraction = 1
	if err := c.validate(); err != errInvalidSecondChance {
		t.Errorf("validate() = %v, want errInvalidSecondChance", err)
	}
}

func TestValidateRejectsBadCronExpression(t *testing.T) {
	c := defaultConfig()
	c.hlog = mainlog.New(nil)
	c.evictionCron = "not a cron expression"
	if err := c.validate(); err == nil {
		t.Error("validate() should reject a malformed cron expression")
	}
}

func TestWithMainLogSatisfiesValidate(t *testing.T) {
	c := defaultConfig()
	WithMainLog(mainlog.New(nil))(c)
	WithPageSize(4096)(c)
	WithMemorySize(4096 * 4)(c)
	if err := c.validate(); err != nil {
		t.Errorf("validate() = %v, want nil", err)
	}
}
