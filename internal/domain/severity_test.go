package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordSeverity(t *testing.T) {
	cases := map[string]Severity{
		"CRITICAL disk failure":        SeverityCritical,
		"an emergency shutdown":        SeverityCritical,
		"security alert raised":        SeverityCritical,
		"login failed for user admin":  SeverityHigh,
		"a failure occurred":           SeverityHigh,
		"warning: disk 90% full":       SeverityMedium,
		"notice: config reloaded":      SeverityLow,
		"informational message only":   SeverityLow,
		"nothing special happened":     SeverityInfo,
	}
	for text, want := range cases {
		assert.Equal(t, want, KeywordSeverity(text), text)
	}
}

func TestSyslogSeverityMapIsTotal(t *testing.T) {
	want := []Severity{SeverityCritical, SeverityCritical, SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo, SeverityInfo}
	for n := 0; n <= 7; n++ {
		assert.Equal(t, want[n], SyslogSeverity(n), "severity %d", n)
	}
	assert.Equal(t, SeverityInfo, SyslogSeverity(99))
}

func TestRecommendedActionIsPure(t *testing.T) {
	assert.Equal(t, "immediate isolation", RecommendedAction(SeverityCritical, "syslog"))
	assert.Equal(t, "immediate isolation", RecommendedAction(SeverityCritical, "cloudwatch"))
	assert.Equal(t, "1h SLA", RecommendedAction(SeverityHigh, "syslog"))
	assert.Equal(t, "24h", RecommendedAction(SeverityMedium, "syslog"))
	assert.Equal(t, "routine", RecommendedAction(SeverityLow, "syslog"))
	assert.Equal(t, "none", RecommendedAction(SeverityInfo, "syslog"))
}

func TestTruncateTitle(t *testing.T) {
	short := "short message"
	assert.Equal(t, short, TruncateTitle(short))

	long := ""
	for i := 0; i < 150; i++ {
		long += "x"
	}
	truncated := TruncateTitle(long)
	assert.Len(t, []rune(truncated), MaxTitleLength)
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))
}
