package lyrics

import (
	"errors"
	"testing"
)

func TestNewCatalogValidation(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		c, err := NewCatalog([]Line{{0, 1000, "a"}, {1000, 2000, "b"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Len() != 2 {
			t.Errorf("Len = %d, want 2", c.Len())
		}
	})

	t.Run("EndNotAfterStart", func(t *testing.T) {
		_, err := NewCatalog([]Line{{1000, 1000, "zero"}})
		if !errors.Is(err, ErrMalformedLine) {
			t.Errorf("err = %v, want ErrMalformedLine", err)
		}
	})

	t.Run("NegativeStart", func(t *testing.T) {
		_, err := NewCatalog([]Line{{-5, 10, "neg"}})
		if !errors.Is(err, ErrMalformedLine) {
			t.Errorf("err = %v, want ErrMalformedLine", err)
		}
	})

	t.Run("Unordered", func(t *testing.T) {
		_, err := NewCatalog([]Line{{2000, 3000, "b"}, {0, 1000, "a"}})
		if !errors.Is(err, ErrUnordered) {
			t.Errorf("err = %v, want ErrUnordered", err)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		c, err := NewCatalog(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := c.Find(0); ok {
			t.Error("empty catalog matched a line")
		}
	})
}

func TestCatalogIsImmutable(t *testing.T) {
	src := []Line{{0, 1000, "a"}}
	c, _ := NewCatalog(src)
	src[0].Text = "changed"

	lines := c.Lines()
	lines[0].Text = "changed too"

	if got, _ := c.Find(10); got.Text != "a" {
		t.Errorf("catalog mutated through caller slice: %q", got.Text)
	}
}

func TestFind(t *testing.T) {
	c, _ := NewCatalog([]Line{
		{0, 1000, "A"},
		{500, 1500, "B"},
		{2000, 3000, "C"},
		{2000, 2500, "C2"},
	})

	cases := []struct {
		t    int64
		want string
		ok   bool
	}{
		{0, "A", true},
		{499, "A", true},
		{700, "B", true},
		{1000, "B", true},
		{1500, "", false},
		{1999, "", false},
		{2100, "C2", true},
		{2500, "C", true},
		{3000, "", false},
	}
	for _, tc := range cases {
		got, ok := c.Find(tc.t)
		if ok != tc.ok || got.Text != tc.want {
			t.Errorf("Find(%d) = %q,%v want %q,%v", tc.t, got.Text, ok, tc.want, tc.ok)
		}
	}
}

func TestParseLRC(t *testing.T) {
	lrc := `[ar:Someone]
[ti:Song]
[00:01.5]first
[00:02.49]second
[01:02.123]third
[00:10.00][00:20.00]chorus
no timestamp here
[00:30]   `

	cues := ParseLRC(lrc)
	want := []Cue{
		{1500, "first"},
		{2490, "second"},
		{10000, "chorus"},
		{20000, "chorus"},
		{30000, ""},
		{62123, "third"},
	}
	if len(cues) != len(want) {
		t.Fatalf("got %d cues, want %d: %+v", len(cues), len(want), cues)
	}
	for i := range want {
		if cues[i] != want[i] {
			t.Errorf("cue %d = %+v, want %+v", i, cues[i], want[i])
		}
	}
}

func TestParseLRCLooseInput(t *testing.T) {
	tests := []struct {
		name string
		lrc  string
		want []Cue
	}{
		{"BOM", "\uFEFF[00:01.00]first\n[00:03.00]second\n", []Cue{{1000, "first"}, {3000, "second"}}},
		{"Indented", "  [00:01.00]indented\n\t[00:02.00]tabbed\n", []Cue{{1000, "indented"}, {2000, "tabbed"}}},
		{"ShortMinutes", "[1:02.50]short\n", []Cue{{62500, "short"}}},
		{"LongMinutes", "[100:00.00]long\n", []Cue{{6000000, "long"}}},
		{"ColonFraction", "[00:05:20]colon\n", []Cue{{5200, "colon"}}},
		{"Malformed", "[00:5.00]bad\n[00:06.00]good\n", []Cue{{6000, "good"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLRC(tt.lrc)
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("cue %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}

	c, err := BuildCatalog("\uFEFF[00:01.00]first\n[00:03.00]second\n", 0)
	if err != nil {
		t.Fatalf("BuildCatalog: %v", err)
	}
	if l, ok := c.Find(1500); !ok || l.Text != "first" {
		t.Errorf("Find(1500) = %+v, %v", l, ok)
	}
}

func TestBuildCatalog(t *testing.T) {
	lrc := "[00:00.00]intro\n[00:01.00]one\n[00:01.00]one (translation)\n[00:03.00]two\n"

	t.Run("WithLength", func(t *testing.T) {
		c, err := BuildCatalog(lrc, 10000)
		if err != nil {
			t.Fatalf("BuildCatalog: %v", err)
		}
		want := []Line{{0, 1000, "intro"}, {1000, 3000, "one"}, {3000, 10000, "two"}}
		got := c.Lines()
		if len(got) != len(want) {
			t.Fatalf("got %+v, want %+v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("line %d = %+v, want %+v", i, got[i], want[i])
			}
		}
	})

	t.Run("UnknownLength", func(t *testing.T) {
		c, err := BuildCatalog(lrc, 0)
		if err != nil {
			t.Fatalf("BuildCatalog: %v", err)
		}
		lines := c.Lines()
		last := lines[len(lines)-1]
		if last.End != 3000+DefaultOutro {
			t.Errorf("last End = %d, want %d", last.End, 3000+DefaultOutro)
		}
	})

	t.Run("NoTimedLines", func(t *testing.T) {
		if _, err := BuildCatalog("plain lyrics\nwithout tags", 0); !errors.Is(err, ErrNoLyrics) {
			t.Errorf("err = %v, want ErrNoLyrics", err)
		}
	})
}
