// Copyright 2018 Andrew Fort
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package rfc6242

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
)

// tokenEOM is the NETCONF 1.0 message delimiter (RFC 6242 §4.3).
var tokenEOM = []byte("]]>]]>")

// EOM is the string form of the NETCONF 1.0 end-of-message marker, exported
// for use by callers and tests that need to recognize or append it directly.
var EOM = string(tokenEOM)

const (
	chunkEndTag = "\n##\n"
	// chunkHeaderMaxLen bounds "\n#" + up to 10 decimal digits + "\n".
	chunkHeaderMaxLen = 2 + 10 + 1
)

// decoderEndOfMessage implements NETCONF 1.0 end-of-message framing as a
// bufio.SplitFunc: a message is everything up to the next ]]>]]> marker.
func decoderEndOfMessage(d *Decoder, data []byte, atEOF bool) (advance int, token []byte, err error) {
	if idx := bytes.Index(data, tokenEOM); idx >= 0 {
		d.anySeen = true
		if d.pendingFramer != nil {
			d.framer, d.pendingFramer = d.pendingFramer, nil
		}
		return idx + len(tokenEOM), data[:idx], nil
	}
	if atEOF {
		if len(data) == 0 {
			return 0, nil, nil
		}
		return 0, nil, errors.New("rfc6242: truncated message, missing end-of-message marker")
	}
	// Request more data; bufio.Scanner will grow the buffer and retry.
	return 0, nil, nil
}

// decoderChunked implements NETCONF 1.1 chunked framing (RFC 6242 §4.2) as a
// bufio.SplitFunc. Chunk payloads are accumulated in d.chunkAccum across
// scanner invocations; a token is only emitted once end-of-chunks ("\n##\n")
// has been seen.
func decoderChunked(d *Decoder, data []byte, atEOF bool) (advance int, token []byte, err error) {
	pos := 0
	for {
		if d.chunkDataLeft > 0 {
			remaining := data[pos:]
			n := d.chunkDataLeft
			if uint64(len(remaining)) < n {
				n = uint64(len(remaining))
			}
			d.chunkAccum = append(d.chunkAccum, remaining[:n]...)
			d.chunkDataLeft -= n
			pos += int(n)
			if len(d.chunkAccum) > d.bufSize {
				return pos, nil, errors.New("rfc6242: chunked message exceeds buffer size")
			}

			if d.chunkDataLeft > 0 {
				if atEOF {
					return pos, nil, errors.New("rfc6242: truncated chunk data")
				}
				return pos, nil, nil
			}
			continue
		}

		remaining := data[pos:]
		if len(remaining) == 0 {
			if atEOF {
				return pos, nil, errors.New("rfc6242: truncated chunked message")
			}
			return pos, nil, nil
		}

		if bytes.HasPrefix(remaining, []byte(chunkEndTag)) {
			pos += len(chunkEndTag)
			d.anySeen = true
			if d.pendingFramer != nil {
				d.framer, d.pendingFramer = d.pendingFramer, nil
			}
			tok := d.chunkAccum
			if tok == nil {
				tok = []byte{}
			}
			d.chunkAccum = nil
			return pos, tok, nil
		}

		if !bytes.HasPrefix(remaining, []byte("\n#")) {
			return pos, nil, errors.New("rfc6242: invalid chunk header")
		}

		nl := bytes.IndexByte(remaining[2:], '\n')
		if nl < 0 {
			if len(remaining) > chunkHeaderMaxLen || atEOF {
				return pos, nil, errors.New("rfc6242: invalid chunk header")
			}
			return pos, nil, nil
		}

		sizeStr := string(remaining[2 : 2+nl])
		if !validChunkSize(sizeStr) {
			return pos, nil, errors.New("rfc6242: invalid chunk header")
		}
		size, convErr := strconv.ParseUint(sizeStr, 10, 64)
		if convErr != nil || size == 0 || size > rfc6242maximumAllowedChunkSize {
			return pos, nil, errors.New("rfc6242: chunk size out of range")
		}

		pos += 2 + nl + 1
		d.chunkDataLeft = size
	}
}

// validChunkSize checks s against the chunk-size grammar of RFC 6242 §4.2:
// one or more decimal digits, no leading zero.
func validChunkSize(s string) bool {
	if s == "" || len(s) > rfc6242maximumAllowedChunkSizeLength {
		return false
	}
	if s[0] == '0' {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
