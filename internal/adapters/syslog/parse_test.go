package syslog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRFC3164(t *testing.T) {
	line := "<34>Oct 11 22:14:15 mymachine su[123]: 'su root' failed for lonvick"
	msg, err := Parse(line, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, msg.Facility)
	assert.Equal(t, 2, msg.Severity)
	assert.Equal(t, "mymachine", msg.Hostname)
	assert.Equal(t, "su", msg.AppName)
	assert.Equal(t, "123", msg.ProcID)
	assert.Equal(t, "'su root' failed for lonvick", msg.Message)
}

func TestParseRFC5424(t *testing.T) {
	line := `<165>1 2003-10-11T22:14:15.003Z mymachine.example.com evntslog - ID47 [exampleSDID@32473 iut="3"] An application event log entry`
	msg, err := Parse(line, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 20, msg.Facility)
	assert.Equal(t, 5, msg.Severity)
	assert.Equal(t, "mymachine.example.com", msg.Hostname)
	assert.Equal(t, "evntslog", msg.AppName)
	assert.Equal(t, "ID47", msg.MsgID)
	assert.Equal(t, "An application event log entry", msg.Message)
}

func TestParseRejectsMissingPriority(t *testing.T) {
	_, err := Parse("no priority here", time.Now())
	assert.Error(t, err)
}
