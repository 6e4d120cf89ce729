package utils

import (
	"errors"
	"testing"

	"go.einride.tech/can"
)

func TestEncodeSLCAN(t *testing.T) {
	tests := []struct {
		name  string
		frame can.Frame
		want  string
	}{
		{
			name:  "standard",
			frame: can.Frame{ID: 0x123, Length: 3, Data: can.Data{0xDE, 0xAD, 0x01}},
			want:  "t1233DEAD01\r",
		},
		{
			name:  "extended",
			frame: can.Frame{ID: 0x18FF0102, IsExtended: true, Length: 2, Data: can.Data{0x0A, 0xB0}},
			want:  "T18FF010220AB0\r",
		},
		{
			name:  "empty",
			frame: can.Frame{ID: 0x7FF},
			want:  "t7FF0\r",
		},
		{
			name:  "remote",
			frame: can.Frame{ID: 0x10, IsRemote: true, Length: 4},
			want:  "r0104\r",
		},
		{
			name:  "extended remote",
			frame: can.Frame{ID: 0x1, IsRemote: true, IsExtended: true},
			want:  "R000000010\r",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeSLCAN(tt.frame); got != tt.want {
				t.Fatalf("EncodeSLCAN = %q, want %q", got, tt.want)
			}
			back, err := DecodeSLCAN(tt.want)
			if err != nil {
				t.Fatalf("DecodeSLCAN: %v", err)
			}
			if back != tt.frame {
				t.Fatalf("decoded %+v, want %+v", back, tt.frame)
			}
		})
	}
}

func TestDecodeSLCANErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"x1230",
		"t12",
		"t1239",
		"t1232AA",
		"t12G1AA",
		"t1231ZZ",
	} {
		if _, err := DecodeSLCAN(line); !errors.Is(err, ErrSLCANFrame) {
			t.Fatalf("DecodeSLCAN(%q) err = %v, want ErrSLCANFrame", line, err)
		}
	}
}
