package relay

import (
	"bytes"
	"io"
	"net"
	"sync"
)

// pumpBufferSize is the fixed read buffer size for each pump direction,
// per spec.md §4.2's "fixed 4 KiB buffer".
const pumpBufferSize = 4096

// PumpResult is one direction's outcome: the number of bytes moved, the
// full archived copy of those bytes, and any error that ended the pump
// early.
type PumpResult struct {
	BytesMoved int
	Archive    []byte
	Err        error
}

// Pump carries bytes bidirectionally between client and target, archiving
// each direction's bytes as they pass, per spec.md §4.2's "Bidirectional
// pump": two concurrent tasks race to completion under a single join; a
// zero-length read on either side closes the opposite write half and
// terminates the pair; if either side errors, both halves terminate but
// bytes accumulated so far are retained in the returned results.
func Pump(client, target net.Conn) (clientToTarget, targetToClient PumpResult) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		clientToTarget = pumpOneDirection(target, client)
		if clientToTarget.Err != nil {
			_ = client.Close()
			_ = target.Close()
			return
		}
		if tc, ok := target.(interface{ CloseWrite() error }); ok {
			_ = tc.CloseWrite()
		}
	}()

	go func() {
		defer wg.Done()
		targetToClient = pumpOneDirection(client, target)
		if targetToClient.Err != nil {
			_ = client.Close()
			_ = target.Close()
			return
		}
		if cc, ok := client.(interface{ CloseWrite() error }); ok {
			_ = cc.CloseWrite()
		}
	}()

	wg.Wait()
	return
}

// pumpOneDirection copies from src to dst, archiving every byte read, until
// src returns EOF or either side errors.
func pumpOneDirection(dst io.Writer, src io.Reader) PumpResult {
	buf := make([]byte, pumpBufferSize)
	var archive bytes.Buffer
	total := 0

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			archive.Write(buf[:n])
			total += n
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return PumpResult{BytesMoved: total, Archive: archive.Bytes(), Err: writeErr}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return PumpResult{BytesMoved: total, Archive: archive.Bytes()}
			}
			return PumpResult{BytesMoved: total, Archive: archive.Bytes(), Err: readErr}
		}
	}
}
