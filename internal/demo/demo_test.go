package demo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/jsbridge/internal/bridge"
	"github.com/GriffinCanCode/jsbridge/internal/bridge/envelope"
	tu "github.com/GriffinCanCode/jsbridge/internal/testutil"
)

func readyBridge(t *testing.T) (*bridge.Bridge, *tu.Recorder) {
	t.Helper()
	rec := tu.NewRecorder()
	b := bridge.New(rec, bridge.Options{})
	t.Cleanup(b.Close)
	require.NoError(t, Register(b))
	rec.Ready()
	return b, rec
}

func lastReply(t *testing.T, rec *tu.Recorder) envelope.Response {
	t.Helper()
	resp, err := envelope.Parse(rec.Last())
	require.NoError(t, err)
	require.True(t, resp.IsReply())
	return resp
}

func TestRegisterInstallsNames(t *testing.T) {
	b, _ := readyBridge(t)
	assert.Equal(t, Names, b.Handlers())
}

func TestSum(t *testing.T) {
	_, rec := readyBridge(t)
	rec.Deliver(`{"handlerName":"Sum","data":"{\"a\":40,\"b\":2}","callbackId":"cb_1"}`)

	payload, ok := lastReply(t, rec).Payload()
	require.True(t, ok)
	assert.Equal(t, "42", payload)
}

func TestSumRejectsBadInput(t *testing.T) {
	_, rec := readyBridge(t)
	rec.Deliver(`{"handlerName":"Sum","data":"{\"a\":\"x\"}","callbackId":"cb_1"}`)
	assert.Empty(t, rec.Sent())
}

func TestEcho(t *testing.T) {
	_, rec := readyBridge(t)
	rec.Deliver(`{"handlerName":"Echo","data":"[1,\"two\",3.5]","callbackId":"cb_7"}`)

	resp := lastReply(t, rec)
	assert.Equal(t, "cb_7", resp.ResponseID())
	payload, _ := resp.Payload()
	assert.Equal(t, `[1,"two",3.5]`, payload)
}

func TestNow(t *testing.T) {
	_, rec := readyBridge(t)
	before := time.Now().UTC().Add(-time.Second)
	rec.Deliver(`{"handlerName":"Now","callbackId":"cb_2"}`)

	resp := lastReply(t, rec)
	at, ok := resp.Decode(nil).(time.Time)
	require.True(t, ok)
	assert.True(t, at.After(before))
	assert.Equal(t, time.UTC, at.Location())
}

func TestSumArgsEncodesAsRecord(t *testing.T) {
	b, rec := readyBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.CallContext(ctx, "Sum", SumArgs{A: 1, B: 2})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t,
		[]string{`{"handlerName":"Sum","data":"{\"a\":1,\"b\":2}","callbackId":"native_cb_1"}`},
		rec.Sent())
}
