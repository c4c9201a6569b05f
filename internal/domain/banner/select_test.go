package banner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var selectNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func activeBanner(id string, priority int) Banner {
	return Banner{
		ID:       id,
		Title:    id,
		Surface:  SurfaceHero,
		Priority: priority,
		Active:   true,
		StartsAt: selectNow.Add(-24 * time.Hour),
		EndsAt:   selectNow.Add(24 * time.Hour),
	}
}

func TestSelect_ActiveWindow(t *testing.T) {
	current := activeBanner("current", 5)

	upcoming := activeBanner("upcoming", 5)
	upcoming.StartsAt = selectNow.Add(time.Hour)

	ended := activeBanner("ended", 5)
	ended.EndsAt = selectNow.Add(-time.Hour)

	inactive := activeBanner("inactive", 5)
	inactive.Active = false

	got := Select([]Banner{current, upcoming, ended, inactive}, Visitor{}, "/", selectNow, nil)

	require.Len(t, got, 1)
	assert.Equal(t, "current", got[0].ID)
}

func TestSelect_ShowOnPages(t *testing.T) {
	b := activeBanner("shop-only", 5)
	b.Rules.ShowOnPages = []string{"/shop"}

	got := Select([]Banner{b}, Visitor{}, "/about", selectNow, nil)
	assert.Empty(t, got)

	got = Select([]Banner{b}, Visitor{}, "/shop", selectNow, nil)
	assert.Len(t, got, 1)

	// Prefix match covers subpages.
	got = Select([]Banner{b}, Visitor{}, "/shop/apparel", selectNow, nil)
	assert.Len(t, got, 1)
}

func TestSelect_HideWinsOverShow(t *testing.T) {
	b := activeBanner("everywhere-but-checkout", 5)
	b.Rules.ShowOnPages = []string{"*"}
	b.Rules.HideOnPages = []string{"/checkout"}

	got := Select([]Banner{b}, Visitor{}, "/shop", selectNow, nil)
	assert.Len(t, got, 1)

	got = Select([]Banner{b}, Visitor{}, "/checkout", selectNow, nil)
	assert.Empty(t, got)

	got = Select([]Banner{b}, Visitor{}, "/checkout/payment", selectNow, nil)
	assert.Empty(t, got)
}

func TestSelect_WildcardShowsEverywhere(t *testing.T) {
	b := activeBanner("global", 5)
	b.Rules.ShowOnPages = []string{"*"}

	for _, path := range []string{"/", "/shop", "/about/team"} {
		got := Select([]Banner{b}, Visitor{}, path, selectNow, nil)
		assert.Len(t, got, 1, "path %s", path)
	}
}

func TestSelect_AudienceUserType(t *testing.T) {
	guests := activeBanner("guests", 5)
	guests.Audience.UserTypes = []string{"guest"}

	got := Select([]Banner{guests}, Visitor{LoggedIn: true}, "/", selectNow, nil)
	assert.Empty(t, got)

	got = Select([]Banner{guests}, Visitor{}, "/", selectNow, nil)
	assert.Len(t, got, 1)
}

func TestSelect_AudienceDimensions(t *testing.T) {
	b := activeBanner("targeted", 5)
	b.Audience = Audience{
		Segments:  []string{"vip"},
		Locations: []string{"US", "CA"},
		Devices:   []string{"mobile"},
	}

	match := Visitor{Segment: "vip", Location: "US", Device: "mobile"}
	got := Select([]Banner{b}, match, "/", selectNow, nil)
	assert.Len(t, got, 1)

	wrongSegment := match
	wrongSegment.Segment = "standard"
	got = Select([]Banner{b}, wrongSegment, "/", selectNow, nil)
	assert.Empty(t, got)

	wrongDevice := match
	wrongDevice.Device = "desktop"
	got = Select([]Banner{b}, wrongDevice, "/", selectNow, nil)
	assert.Empty(t, got)
}

func TestSelect_EmptyAudienceMatchesEveryone(t *testing.T) {
	b := activeBanner("open", 5)

	got := Select([]Banner{b}, Visitor{LoggedIn: true, Segment: "vip", Device: "tablet"}, "/", selectNow, nil)

	assert.Len(t, got, 1)
}

func TestSelect_MaxDisplaysCap(t *testing.T) {
	b := activeBanner("capped", 5)
	b.Rules.MaxDisplays = 3

	history := HistoryByBanner{"capped": {Displays: 3, LastShown: selectNow.Add(-48 * time.Hour)}}
	got := Select([]Banner{b}, Visitor{}, "/", selectNow, history)
	assert.Empty(t, got)

	history["capped"] = History{Displays: 2, LastShown: selectNow.Add(-48 * time.Hour)}
	got = Select([]Banner{b}, Visitor{}, "/", selectNow, history)
	assert.Len(t, got, 1)
}

func TestSelect_MinHoursBetween(t *testing.T) {
	b := activeBanner("spaced", 5)
	b.Rules.MinHoursBetween = 6

	history := HistoryByBanner{"spaced": {Displays: 1, LastShown: selectNow.Add(-2 * time.Hour)}}
	got := Select([]Banner{b}, Visitor{}, "/", selectNow, history)
	assert.Empty(t, got)

	history["spaced"] = History{Displays: 1, LastShown: selectNow.Add(-7 * time.Hour)}
	got = Select([]Banner{b}, Visitor{}, "/", selectNow, history)
	assert.Len(t, got, 1)

	// A visitor with no history is never spaced out.
	got = Select([]Banner{b}, Visitor{}, "/", selectNow, nil)
	assert.Len(t, got, 1)
}

func TestSelect_Ordering(t *testing.T) {
	older := activeBanner("b-older", 5)
	older.CreatedAt = selectNow.Add(-48 * time.Hour)

	newer := activeBanner("a-newer", 5)
	newer.CreatedAt = selectNow.Add(-24 * time.Hour)

	top := activeBanner("z-top", 9)
	top.CreatedAt = selectNow.Add(-72 * time.Hour)

	got := Select([]Banner{older, newer, top}, Visitor{}, "/", selectNow, nil)

	require.Len(t, got, 3)
	assert.Equal(t, "z-top", got[0].ID, "highest priority first")
	assert.Equal(t, "a-newer", got[1].ID, "newer beats older at equal priority")
	assert.Equal(t, "b-older", got[2].ID)
}

func TestSelect_OrderingTieBreaksOnID(t *testing.T) {
	created := selectNow.Add(-24 * time.Hour)
	b1 := activeBanner("banner-b", 5)
	b1.CreatedAt = created
	b2 := activeBanner("banner-a", 5)
	b2.CreatedAt = created

	got := Select([]Banner{b1, b2}, Visitor{}, "/", selectNow, nil)

	require.Len(t, got, 2)
	assert.Equal(t, "banner-a", got[0].ID)
	assert.Equal(t, "banner-b", got[1].ID)

	// Input order never changes the output order.
	again := Select([]Banner{b2, b1}, Visitor{}, "/", selectNow, nil)
	assert.Equal(t, got[0].ID, again[0].ID)
	assert.Equal(t, got[1].ID, again[1].ID)
}

func TestVisitorUserType(t *testing.T) {
	assert.Equal(t, "guest", Visitor{}.UserType())
	assert.Equal(t, "logged_in", Visitor{LoggedIn: true}.UserType())
}

func TestBannerCheckInvariants(t *testing.T) {
	valid := activeBanner("ok", 5)
	assert.NoError(t, valid.CheckInvariants())

	badPriority := activeBanner("bad", 11)
	assert.Error(t, badPriority.CheckInvariants())

	inverted := activeBanner("bad", 5)
	inverted.EndsAt = inverted.StartsAt.Add(-time.Hour)
	assert.Error(t, inverted.CheckInvariants())

	badSurface := activeBanner("bad", 5)
	badSurface.Surface = "marquee"
	assert.Error(t, badSurface.CheckInvariants())
}

func TestParseEventKind(t *testing.T) {
	for _, s := range []string{"impression", "click", "conversion", "unique_view"} {
		k, err := ParseEventKind(s)
		require.NoError(t, err)
		assert.Equal(t, EventKind(s), k)
	}

	_, err := ParseEventKind("hover")
	assert.Error(t, err)
}
