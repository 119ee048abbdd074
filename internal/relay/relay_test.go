package relay

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webproof/notary/internal/cryptoutil"
)

func TestPolicyRejectsLoopbackByDefault(t *testing.T) {
	p := Policy{}
	_, err := p.CheckTarget("127.0.0.1")
	require.Error(t, err)
	var forbidden *ErrForbiddenTarget
	require.ErrorAs(t, err, &forbidden)
}

func TestPolicyRejectsPrivateRange(t *testing.T) {
	p := Policy{}
	_, err := p.CheckTarget("10.0.0.5")
	require.Error(t, err)
}

func TestPolicyAllowsPrivateWhenFlagged(t *testing.T) {
	p := Policy{AllowPrivateTargets: true}
	ip, err := p.CheckTarget("127.0.0.1")
	require.NoError(t, err)
	require.True(t, ip.IsLoopback())
}

func TestPolicyAllowsPublicAddress(t *testing.T) {
	p := Policy{}
	ip, err := p.CheckTarget("93.184.216.34")
	require.NoError(t, err)
	require.False(t, ip.IsPrivate())
}

func TestSessionTableInsertGetRemove(t *testing.T) {
	table := NewSessionTable(time.Hour, nil)
	defer table.Close()

	table.Insert(&SessionRecord{SessionID: "abc", RequestBytes: 10, Timestamp: time.Now()})
	rec, ok := table.Get("abc")
	require.True(t, ok)
	require.Equal(t, 10, rec.RequestBytes)

	table.Remove("abc")
	_, ok = table.Get("abc")
	require.False(t, ok)
}

func TestSessionTableReapsStaleEntries(t *testing.T) {
	table := NewSessionTable(10*time.Millisecond, nil)
	defer table.Close()

	table.Insert(&SessionRecord{SessionID: "stale", Timestamp: time.Now().Add(-time.Hour)})
	table.reapOnce()
	_, ok := table.Get("stale")
	require.False(t, ok)
}

func TestPumpArchivesBothDirectionsAndStopsOnEOF(t *testing.T) {
	clientLocal, clientRemote := net.Pipe()
	targetLocal, targetRemote := net.Pipe()

	go func() {
		clientRemote.Write([]byte("request bytes"))
		clientRemote.Close()
	}()
	go func() {
		targetRemote.Write([]byte("response bytes"))
		targetRemote.Close()
	}()

	done := make(chan struct{})
	var c2t, t2c PumpResult
	go func() {
		c2t, t2c = Pump(clientLocal, targetLocal)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not complete")
	}

	require.Equal(t, "request bytes", string(c2t.Archive))
	require.Equal(t, "response bytes", string(t2c.Archive))
}

var _ io.ReadWriteCloser = (*websocketConn)(nil)

func TestHandleSignReturnsHexDERSignatureJSON(t *testing.T) {
	key, err := cryptoutil.GenerateSigningKey()
	require.NoError(t, err)
	signer := NewSigner(key, nil)

	table := NewSessionTable(time.Hour, nil)
	defer table.Close()
	table.Insert(&SessionRecord{SessionID: "sess-1", RequestBytes: 10, ResponseBytes: 20, Timestamp: time.Now()})

	srv := NewServer(Policy{}, table, signer, nil)

	reqBody, err := json.Marshal(signRequest{
		ServerAESKey: base64.StdEncoding.EncodeToString([]byte("0123456789abcdef")),
		ServerAESIV:  base64.StdEncoding.EncodeToString([]byte("0123456789ab")),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/sign?session_id=sess-1", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()

	srv.HandleSign(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp signResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Signature)

	der, err := hex.DecodeString(resp.Signature)
	require.NoError(t, err)

	digestInput := []byte("sess-1:10:20")
	digest := cryptoutil.Sha256(cryptoutil.Concat(digestInput, []byte("0123456789abcdef"), []byte("0123456789ab")))
	require.True(t, ecdsa.VerifyASN1(&key.PublicKey, digest, der))
}

func TestHandleSignRejectsMalformedBody(t *testing.T) {
	key, err := cryptoutil.GenerateSigningKey()
	require.NoError(t, err)
	signer := NewSigner(key, nil)

	table := NewSessionTable(time.Hour, nil)
	defer table.Close()
	table.Insert(&SessionRecord{SessionID: "sess-2", Timestamp: time.Now()})

	srv := NewServer(Policy{}, table, signer, nil)

	req := httptest.NewRequest(http.MethodPost, "/sign?session_id=sess-2", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	srv.HandleSign(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSignUnknownSessionNotFound(t *testing.T) {
	key, err := cryptoutil.GenerateSigningKey()
	require.NoError(t, err)
	signer := NewSigner(key, nil)

	table := NewSessionTable(time.Hour, nil)
	defer table.Close()

	srv := NewServer(Policy{}, table, signer, nil)

	req := httptest.NewRequest(http.MethodPost, "/sign?session_id=missing", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()

	srv.HandleSign(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
