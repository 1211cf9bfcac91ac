package playlist

import (
	"reflect"
	"testing"
)

func TestParseDirectives(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantMeta map[string]string
	}{
		{
			name:     "key value split on first colon",
			text:     "#EXT-X-TARGETDURATION:10\n",
			wantMeta: map[string]string{"#EXT-X-TARGETDURATION": "10"},
		},
		{
			name:     "value keeps later colons",
			text:     "#EXT-X-PROGRAM-DATE-TIME:2024-01-01T00:00:00Z\n",
			wantMeta: map[string]string{"#EXT-X-PROGRAM-DATE-TIME": "2024-01-01T00:00:00Z"},
		},
		{
			name:     "directive without colon is dropped",
			text:     "#EXTM3U\n#EXT-X-TARGETDURATION:4\n",
			wantMeta: map[string]string{"#EXT-X-TARGETDURATION": "4"},
		},
		{
			name:     "later directive overwrites earlier",
			text:     "#EXT-X-MEDIA-SEQUENCE:1\n#EXT-X-MEDIA-SEQUENCE:2\n",
			wantMeta: map[string]string{"#EXT-X-MEDIA-SEQUENCE": "2"},
		},
		{
			name:     "crlf line endings are handled",
			text:     "#EXT-X-TARGETDURATION:6\r\nseg-1.ts\r\n",
			wantMeta: map[string]string{"#EXT-X-TARGETDURATION": "6"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := Parse(tt.text, "http://cdn.example.com/live/chunklist.m3u8")
			if !reflect.DeepEqual(pl.Metadata, tt.wantMeta) {
				t.Errorf("Parse metadata = %v, want %v", pl.Metadata, tt.wantMeta)
			}
		})
	}
}

func TestParseSegments(t *testing.T) {
	const final = "http://cdn.example.com/live/chunklist.m3u8"

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "relative references resolve against the final url's directory",
			text: "seg-1.ts\nseg-2.ts\n",
			want: []string{
				"http://cdn.example.com/live/seg-1.ts",
				"http://cdn.example.com/live/seg-2.ts",
			},
		},
		{
			name: "absolute references pass through untouched",
			text: "https://edge.example.net/a/seg-9.ts\n",
			want: []string{"https://edge.example.net/a/seg-9.ts"},
		},
		{
			name: "short noise lines are discarded",
			text: "/1\nab\nseg-1.ts\n",
			want: []string{"http://cdn.example.com/live/seg-1.ts"},
		},
		{
			name: "blank lines are discarded",
			text: "\n\nseg-1.ts\n\n",
			want: []string{"http://cdn.example.com/live/seg-1.ts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := Parse(tt.text, final)
			if !reflect.DeepEqual(pl.Segments, tt.want) {
				t.Errorf("Parse segments = %v, want %v", pl.Segments, tt.want)
			}
		})
	}
}

func TestDecodeMediaPlaylist(t *testing.T) {
	text := "#EXTM3U\n" +
		"#EXT-X-VERSION:3\n" +
		"#EXT-X-TARGETDURATION:6\n" +
		"#EXT-X-MEDIA-SEQUENCE:100\n" +
		"#EXTINF:5.760,\n" +
		"seg-100.ts\n" +
		"#EXTINF:6.000,\n" +
		"seg-101.ts\n"

	pl := Decode(text, "http://cdn.example.com/live/chunklist.m3u8")

	want := []string{
		"http://cdn.example.com/live/seg-100.ts",
		"http://cdn.example.com/live/seg-101.ts",
	}
	if !reflect.DeepEqual(pl.Segments, want) {
		t.Errorf("Decode segments = %v, want %v", pl.Segments, want)
	}
	if got := pl.Metadata[TargetDurationKey]; got != "6" {
		t.Errorf("target duration = %q, want %q", got, "6")
	}
}

func TestRedirectTarget(t *testing.T) {
	tests := []struct {
		name      string
		segments  []string
		want      string
		wantFound bool
	}{
		{
			name:      "no playlist references means terminal",
			segments:  []string{"http://cdn.example.com/seg-1.ts"},
			wantFound: false,
		},
		{
			name: "first playlist reference wins",
			segments: []string{
				"http://cdn.example.com/low/chunklist.m3u8",
				"http://cdn.example.com/high/chunklist.m3u8",
			},
			want:      "http://cdn.example.com/low/chunklist.m3u8",
			wantFound: true,
		},
		{
			name: "playlist reference after media segments still redirects",
			segments: []string{
				"http://cdn.example.com/seg-1.ts",
				"http://cdn.example.com/next/CHUNKLIST.M3U8",
			},
			want:      "http://cdn.example.com/next/CHUNKLIST.M3U8",
			wantFound: true,
		},
		{
			name:      "empty list",
			segments:  nil,
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := RedirectTarget(tt.segments)
			if found != tt.wantFound || got != tt.want {
				t.Errorf("RedirectTarget = (%q, %v), want (%q, %v)", got, found, tt.want, tt.wantFound)
			}
		})
	}
}

func TestTargetDuration(t *testing.T) {
	tests := []struct {
		name   string
		meta   map[string]string
		want   float64
		wantOK bool
	}{
		{name: "integer value", meta: map[string]string{TargetDurationKey: "10"}, want: 10, wantOK: true},
		{name: "fractional value", meta: map[string]string{TargetDurationKey: "5.5"}, want: 5.5, wantOK: true},
		{name: "absent", meta: map[string]string{}, wantOK: false},
		{name: "non numeric", meta: map[string]string{TargetDurationKey: "soon"}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TargetDuration(tt.meta)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("TargetDuration = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
