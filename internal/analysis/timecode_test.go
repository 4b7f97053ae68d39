package analysis

import "testing"

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"0:10", 10, false},
		{"05:30", 330, false},
		{"1:02:03", 3723, false},
		{"00:00:07.5", 7.5, false},
		{"90", 90, false},
		{" 12:00 ", 720, false},
		{"", 0, true},
		{"1:75", 0, true},
		{"1:2:3:4", 0, true},
		{"ab:cd", 0, true},
		{"-1:00", 0, true},
		{"1.5:00", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimecode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimecode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTimecode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		in        string
		ok        bool
		start     float64
		end       float64
		duration  float64
	}{
		{"0:10-0:20", true, 10, 20, 10},
		{"5:00 - 5:10", true, 300, 310, 10},
		{"1:00:00 to 1:02:30", true, 3600, 3750, 150},
		{"2:00–2:30", true, 120, 150, 30},
		{"3:00", true, 180, 180, 0},
		{"4:00-3:00", true, 240, 240, 0},
		{"4:00-later", true, 240, 240, 0},
		{"throughout", false, 0, 0, 0},
		{"", false, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimeRange(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.StartSeconds != tt.start || got.EndSeconds != tt.end || got.DurationSeconds != tt.duration {
				t.Errorf("ParseTimeRange(%q) = %+v", tt.in, got)
			}
			if got.Raw == "" {
				t.Error("Raw should be preserved")
			}
		})
	}
}

func TestParseTimeRanges_SkipsUnparseable(t *testing.T) {
	got := ParseTimeRanges([]string{"0:10-0:20", "intro", "1:00-1:30"})
	if len(got) != 2 {
		t.Fatalf("got %d ranges, want 2", len(got))
	}
	if got[1].StartSeconds != 60 {
		t.Errorf("second range = %+v", got[1])
	}
}
