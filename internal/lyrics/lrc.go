package lyrics

import (
	"bufio"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultOutro is how long the last line stays up when the song length is
// unknown or shorter than the last timestamp.
const DefaultOutro int64 = 5000

// lrcTag matches [mm:ss], [mm:ss.xx] and [mm:ss:xx]. Minutes may have one to
// three digits.
var lrcTag = regexp.MustCompile(`\[(\d{1,3}):(\d{2})(?:[.:](\d{1,3}))?\]`)

// Cue is a single LRC timestamp with its text. LRC only carries start times.
type Cue struct {
	Time int64
	Text string
}

// ParseLRC extracts timed cues from LRC text, sorted by time. A line with
// several leading tags yields one cue per tag. Metadata tags such as [ar:..]
// and untimed lines are ignored.
func ParseLRC(lrc string) []Cue {
	scanner := bufio.NewScanner(strings.NewReader(lrc))
	var result []Cue

	for scanner.Scan() {
		line := strings.TrimLeft(strings.TrimPrefix(scanner.Text(), "\uFEFF"), " \t")
		var times []int64
		rest := line
		for {
			loc := lrcTag.FindStringSubmatchIndex(rest)
			if loc == nil || loc[0] != 0 {
				break
			}
			times = append(times, tagMillis(rest, loc))
			rest = rest[loc[1]:]
		}
		if len(times) == 0 {
			if looksTimed(line) {
				log.Debug().Str("line", line).Msg("Skipping malformed LRC time tag")
			}
			continue
		}
		text := strings.TrimSpace(rest)
		for _, ts := range times {
			result = append(result, Cue{Time: ts, Text: text})
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Time < result[j].Time })
	return result
}

func looksTimed(line string) bool {
	return len(line) > 1 && line[0] == '[' && line[1] >= '0' && line[1] <= '9'
}

func tagMillis(s string, loc []int) int64 {
	min, _ := strconv.Atoi(s[loc[2]:loc[3]])
	sec, _ := strconv.Atoi(s[loc[4]:loc[5]])
	ms := 0
	if loc[6] >= 0 {
		msStr := s[loc[6]:loc[7]]
		ms, _ = strconv.Atoi(msStr)
		switch len(msStr) {
		case 1:
			ms *= 100 // .1 is 100ms
		case 2:
			ms *= 10 // .49 is 490ms
		}
	}
	return int64(min*60+sec)*1000 + int64(ms)
}

// BuildCatalog turns LRC text into a Catalog. Each cue ends where the next
// distinct timestamp starts. The last cue ends at length (song length in
// ms) when that is later than the cue, otherwise DefaultOutro after it.
// Cues sharing a timestamp keep only the first one.
func BuildCatalog(lrc string, length int64) (*Catalog, error) {
	cues := ParseLRC(lrc)
	if len(cues) == 0 {
		return nil, ErrNoLyrics
	}

	var deduped []Cue
	for _, c := range cues {
		if n := len(deduped); n > 0 && deduped[n-1].Time == c.Time {
			continue
		}
		deduped = append(deduped, c)
	}

	lines := make([]Line, len(deduped))
	for i, c := range deduped {
		end := c.Time + DefaultOutro
		if i+1 < len(deduped) {
			end = deduped[i+1].Time
		} else if length > c.Time {
			end = length
		}
		lines[i] = Line{Start: c.Time, End: end, Text: c.Text}
	}
	return NewCatalog(lines)
}
