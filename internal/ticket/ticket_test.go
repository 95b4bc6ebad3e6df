package ticket

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir, activity string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1080, 1600))
	for y := 0; y < 1600; y++ {
		for x := 0; x < 1080; x++ {
			img.Set(x, y, color.White)
		}
	}
	f, err := os.Create(filepath.Join(dir, "inspira-registration-"+activity+".png"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestRenderer_DrawsOnTemplate(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "modeling")

	r, err := NewRenderer(dir, "")
	require.NoError(t, err)

	out, err := r.Render(Ticket{Day: "7", Month: "NOV", Time: "13:00", Activity: "Modeling"})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1080, 1600), img.Bounds())

	inked := 0
	for y := 1160; y < 1360; y++ {
		for x := 0; x < 600; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			if cr != 0xffff || cg != 0xffff || cb != 0xffff {
				inked++
			}
		}
	}
	assert.Greater(t, inked, 0, "expected text pixels near the date slots")
}

func TestRenderer_MissingTemplate(t *testing.T) {
	r, err := NewRenderer(t.TempDir(), "")
	require.NoError(t, err)

	_, err = r.Render(Ticket{Day: "7", Month: "NOV", Time: "13:00", Activity: "Painting"})
	assert.ErrorIs(t, err, ErrTemplateMissing)
}

func TestNewRenderer_BadFont(t *testing.T) {
	dir := t.TempDir()
	_, err := NewRenderer(dir, filepath.Join(dir, "missing.otf"))
	assert.Error(t, err)

	junk := filepath.Join(dir, "junk.otf")
	require.NoError(t, os.WriteFile(junk, []byte("not a font"), 0o644))
	_, err = NewRenderer(dir, junk)
	assert.Error(t, err)
}

func TestActivitySlug(t *testing.T) {
	assert.Equal(t, "modeling", ActivitySlug("Modeling"))
	assert.Equal(t, "painting", ActivitySlug("Живопись"))
	assert.Equal(t, "wheel-throwing", ActivitySlug("Wheel Throwing"))

	r, err := NewRenderer("/tpl", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tpl", "inspira-registration-painting.png"), r.TemplatePath("Painting"))
}

func TestUpcomingSaturdays(t *testing.T) {
	tests := []struct {
		name  string
		today time.Time
		first time.Time
	}{
		{
			name:  "weekday",
			today: time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC), // Wednesday
			first: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "saturday counts",
			today: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
			first: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "sunday",
			today: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
			first: time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days := UpcomingSaturdays(tt.today, 4)
			require.Len(t, days, 4)
			assert.Equal(t, tt.first, days[0])
			for i, d := range days {
				assert.Equal(t, time.Saturday, d.Weekday())
				assert.Equal(t, tt.first.AddDate(0, 0, 7*i), d)
			}
		})
	}
}

func TestParseDateLabel(t *testing.T) {
	today := time.Date(2026, 12, 20, 10, 0, 0, 0, time.UTC)

	d, err := ParseDateLabel("26 December", today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 12, 26, 0, 0, 0, 0, time.UTC), d)

	// past days roll over to the next year
	d, err = ParseDateLabel("2 January", today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDateLabel("someday", today)
	assert.Error(t, err)
}

func TestFormatting(t *testing.T) {
	day := time.Date(2026, 11, 7, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "7 November", DateLabel(day))
	assert.Equal(t, "NOV", DisplayMonth(day))
	assert.Equal(t, "07.11.2026", LessonDate(day))
	assert.Equal(t, "07.11.2026_13.00", GroupLabel(day, "13:00"))
	assert.Equal(t, Ticket{Day: "7", Month: "NOV", Time: "13:00", Activity: "Painting"}, ForDay(day, "13:00", "Painting"))
}
