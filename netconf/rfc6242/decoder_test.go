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
	"testing"
)

func TestEOMDecoding(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{"SingleMessage", "ABC" + EOM, []string{"ABC"}},
		{"EmptyMessage", EOM, []string{""}},
		{"TwoMessages", "ABC" + EOM + "XYZ" + EOM, []string{"ABC", "XYZ"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(bytes.NewBufferString(tt.input))
			for _, want := range tt.expect {
				got, err := readOneMessage(d)
				if err != nil {
					t.Fatalf("%s: unexpected error %v", tt.name, err)
				}
				if got != want {
					t.Errorf("%s: wanted %q got %q", tt.name, want, got)
				}
			}
		})
	}
}

func TestEOMDecodingTruncated(t *testing.T) {
	d := NewDecoder(bytes.NewBufferString("ABC"))
	_, err := readOneMessage(d)
	if err == nil {
		t.Fatalf("expected error for truncated message, got nil")
	}
}

func TestChunkedDecoding(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{"SingleChunk", "\n#3\nABC\n##\n", []string{"ABC"}},
		{"MultiChunk", "\n#5\nABCDE\n#3\nFGH\n##\n", []string{"ABCDEFGH"}},
		{"EmptyChunkedMessage", "\n##\n", []string{""}},
		{"TwoMessages", "\n#3\nABC\n##\n\n#3\nXYZ\n##\n", []string{"ABC", "XYZ"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(bytes.NewBufferString(tt.input))
			SetChunkedFraming(d)
			for _, want := range tt.expect {
				got, err := readOneMessage(d)
				if err != nil {
					t.Fatalf("%s: unexpected error %v", tt.name, err)
				}
				if got != want {
					t.Errorf("%s: wanted %q got %q", tt.name, want, got)
				}
			}
		})
	}
}

func TestChunkedDecodingInvalidHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"LeadingZero", "\n#03\nABC\n##\n"},
		{"NonDigit", "\n#3a\nABC\n##\n"},
		{"MissingHash", "\nX3\nABC\n##\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(bytes.NewBufferString(tt.input))
			SetChunkedFraming(d)
			_, err := readOneMessage(d)
			if err == nil {
				t.Fatalf("%s: expected error, got nil", tt.name)
			}
		})
	}
}

func TestModeSwitchAfterHello(t *testing.T) {
	// Simulates NETCONF 1.1 capability negotiation: the first message is
	// still EOM-framed (the <hello>), chunked framing only takes effect
	// once that message has been fully consumed, matching setFramer's
	// pendingFramer deferral.
	input := "<hello/>" + EOM + "\n#3\nABC\n##\n"
	d := NewDecoder(bytes.NewBufferString(input))

	hello, err := readOneMessage(d)
	if err != nil {
		t.Fatalf("unexpected error reading hello: %v", err)
	}
	if hello != "<hello/>" {
		t.Fatalf("wanted hello, got %q", hello)
	}

	SetChunkedFraming(d)

	got, err := readOneMessage(d)
	if err != nil {
		t.Fatalf("unexpected error reading chunked message: %v", err)
	}
	if got != "ABC" {
		t.Errorf("wanted ABC got %q", got)
	}
}

func TestWriteTo(t *testing.T) {
	d := NewDecoder(bytes.NewBufferString("ABC" + EOM + "XYZ" + EOM))
	var out bytes.Buffer
	_, err := d.WriteTo(&out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "ABCXYZ" {
		t.Errorf("wanted ABCXYZ got %q", out.String())
	}
}

// readOneMessage reads a single decoded message (one framed token) from d.
// Each call to Decoder.Read delivers at most one token, so a single call
// with a buffer large enough for these small test fixtures suffices.
func readOneMessage(d *Decoder) (string, error) {
	buf := make([]byte, 4096)
	n, err := d.Read(buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}
