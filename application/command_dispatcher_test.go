package application

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, waker Waker, publisher Publisher, buf *bytes.Buffer) *CommandDispatcher {
	dispatcher, err := NewCommandDispatcher(CommandDispatcherParams{
		Waker:         waker,
		Publisher:     publisher,
		ShutdownTopic: "power/shutdown",
		Log:           zerolog.New(buf),
	})
	require.NoError(t, err)
	return dispatcher
}

func logLines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimSpace(buf.String()), "\n")
}

func TestNewCommandDispatcher(t *testing.T) {
	_, err := NewCommandDispatcher(CommandDispatcherParams{Publisher: &MockPublisher{}, ShutdownTopic: "t"})
	require.Error(t, err)

	_, err = NewCommandDispatcher(CommandDispatcherParams{Waker: &MockWaker{}, ShutdownTopic: "t"})
	require.Error(t, err)

	_, err = NewCommandDispatcher(CommandDispatcherParams{Waker: &MockWaker{}, Publisher: &MockPublisher{}})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestCommandDispatcher_Wake(t *testing.T) {
	mWaker := &MockWaker{}
	mPublisher := &MockPublisher{}
	buf := &bytes.Buffer{}

	dispatcher := newTestDispatcher(t, mWaker, mPublisher, buf)

	mWaker.On("Wake", "AA:BB:CC:DD:EE:FF").Return(nil).Once()

	err := dispatcher.Dispatch([]byte("ON:AA:BB:CC:DD:EE:FF"))
	require.NoError(t, err)

	mWaker.AssertExpectations(t)
	mPublisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCommandDispatcher_Wake_Twice(t *testing.T) {
	mWaker := &MockWaker{}
	mPublisher := &MockPublisher{}
	buf := &bytes.Buffer{}

	dispatcher := newTestDispatcher(t, mWaker, mPublisher, buf)

	mWaker.On("Wake", "AA:BB:CC:DD:EE:FF").Return(nil).Twice()

	require.NoError(t, dispatcher.Dispatch([]byte("ON:AA:BB:CC:DD:EE:FF")))
	require.NoError(t, dispatcher.Dispatch([]byte("ON:AA:BB:CC:DD:EE:FF")))

	mWaker.AssertNumberOfCalls(t, "Wake", 2)
	mWaker.AssertExpectations(t)
}

func TestCommandDispatcher_Wake_SendError(t *testing.T) {
	mWaker := &MockWaker{}
	mPublisher := &MockPublisher{}
	buf := &bytes.Buffer{}

	dispatcher := newTestDispatcher(t, mWaker, mPublisher, buf)

	mWaker.On("Wake", "AA:BB:CC:DD:EE:FF").Return(fmt.Errorf("network unreachable")).Once()

	err := dispatcher.Dispatch([]byte("ON:AA:BB:CC:DD:EE:FF"))
	require.ErrorIs(t, err, ErrAction)
	assert.Contains(t, buf.String(), `"level":"error"`)

	mWaker.AssertExpectations(t)
}

func TestCommandDispatcher_Wake_Panic(t *testing.T) {
	mWaker := &MockWaker{}
	mPublisher := &MockPublisher{}
	buf := &bytes.Buffer{}

	dispatcher := newTestDispatcher(t, mWaker, mPublisher, buf)

	mWaker.On("Wake", "AA:BB:CC:DD:EE:FF").Run(func(args mock.Arguments) {
		panic("boom")
	}).Return(nil).Once()

	var err error
	require.NotPanics(t, func() {
		err = dispatcher.Dispatch([]byte("ON:AA:BB:CC:DD:EE:FF"))
	})
	require.ErrorIs(t, err, ErrAction)
	assert.Contains(t, err.Error(), "boom")
}

func TestCommandDispatcher_Shutdown(t *testing.T) {
	mWaker := &MockWaker{}
	mPublisher := &MockPublisher{}
	buf := &bytes.Buffer{}

	dispatcher := newTestDispatcher(t, mWaker, mPublisher, buf)

	mPublisher.On("Publish", "power/shutdown", byte(1), false, "shutdown").Return(nil).Once()

	err := dispatcher.Dispatch([]byte("OFF"))
	require.NoError(t, err)

	mPublisher.AssertExpectations(t)
	mWaker.AssertNotCalled(t, "Wake", mock.Anything)
}

func TestCommandDispatcher_Shutdown_PublishError(t *testing.T) {
	mWaker := &MockWaker{}
	mPublisher := &MockPublisher{}
	buf := &bytes.Buffer{}

	dispatcher := newTestDispatcher(t, mWaker, mPublisher, buf)

	mPublisher.On("Publish", "power/shutdown", byte(1), false, "shutdown").Return(fmt.Errorf("not connected")).Once()

	err := dispatcher.Dispatch([]byte("OFF"))
	require.ErrorIs(t, err, ErrAction)

	mPublisher.AssertExpectations(t)
}

func TestCommandDispatcher_Invalid(t *testing.T) {
	payloads := map[string]string{
		"InvalidHex":   "ON:zz:zz:zz:zz:zz:zz",
		"TooLong":      "ON:AA:BB:CC:DD:EE:FF:00",
		"WrongCase":    "off",
		"Unknown":      "REBOOT",
		"Empty":        "",
		"PaddedOff":    " OFF",
		"LowercaseOn":  "on:AA:BB:CC:DD:EE:FF",
		"OnlyPrefix":   "ON:",
		"JSONEnvelope": `{"mac":"AA:BB:CC:DD:EE:FF"}`,
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			mWaker := &MockWaker{}
			mPublisher := &MockPublisher{}
			buf := &bytes.Buffer{}

			dispatcher := newTestDispatcher(t, mWaker, mPublisher, buf)

			err := dispatcher.Dispatch([]byte(payload))
			require.ErrorIs(t, err, ErrValidation)
			assert.Len(t, logLines(buf), 1)

			mWaker.AssertNotCalled(t, "Wake", mock.Anything)
			mPublisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCommandDispatcher_InvalidMAC_LogsError(t *testing.T) {
	buf := &bytes.Buffer{}
	dispatcher := newTestDispatcher(t, &MockWaker{}, &MockPublisher{}, buf)

	err := dispatcher.Dispatch([]byte("ON:zz:zz:zz:zz:zz:zz"))
	require.ErrorIs(t, err, ErrInvalidMAC)

	lines := logLines(buf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"level":"error"`)
	assert.Contains(t, lines[0], "zz:zz:zz:zz:zz:zz")
}

func TestCommandDispatcher_Unknown_LogsWarning(t *testing.T) {
	buf := &bytes.Buffer{}
	dispatcher := newTestDispatcher(t, &MockWaker{}, &MockPublisher{}, buf)

	err := dispatcher.Dispatch([]byte("off"))
	require.ErrorIs(t, err, ErrUnknownCommand)

	lines := logLines(buf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"level":"warn"`)
}
