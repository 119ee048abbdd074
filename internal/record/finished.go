package record

// FinishedVerifyData computes the Finished message's verify_data for the
// given direction's current traffic secret and transcript hash, per
// spec.md §4.1:
//
//	FK = Expand-Label(traffic_secret, "finished", "", hash_len)
//	verify_data = HMAC(FK, transcript_hash)
func (e *Engine) FinishedVerifyData(dir Direction, transcriptHash []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var secret []byte
	switch dir {
	case DirectionClient:
		secret = e.ks.clientSecret
	case DirectionServer:
		secret = e.ks.serverSecret
	}
	if secret == nil {
		return nil, &ErrUnsupportedSuite{Got: e.suite}
	}
	fk := deriveFinishedKey(secret, e.suite.hashLen())
	return finishedVerifyData(fk, transcriptHash), nil
}
