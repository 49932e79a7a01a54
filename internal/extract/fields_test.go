package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestFieldsFullProfile(t *testing.T) {
	html := `<html><body>
		<div data-testid="UserName">
			<span>Alice A.</span>
			<span>@alice</span>
		</div>
		<div data-testid="UserDescription">Builder</div>
		<img alt="Opens profile photo" src="https://pbs.example.com/profile_images/1/alice_200x200.jpg"/>
		<a href="/alice/followers"><span>1.2K Followers</span></a>
	</body></html>`

	got := Fields(parse(t, html))

	require.NotNil(t, got.FullName)
	require.Equal(t, "Alice A.", *got.FullName)
	require.NotNil(t, got.Bio)
	require.Equal(t, "Builder", *got.Bio)
	require.NotNil(t, got.AvatarURL)
	require.Equal(t, "https://pbs.example.com/profile_images/1/alice_200x200.jpg", *got.AvatarURL)
	require.NotNil(t, got.Followers)
	require.Equal(t, "1.2K", *got.Followers)
}

func TestFieldsEmptyPage(t *testing.T) {
	got := Fields(parse(t, `<html><body><div>loading</div></body></html>`))
	require.True(t, got.Empty())
}

func TestNameFallsBackToOGTitle(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="Alice A. (@alice) / X"/>
	</head><body></body></html>`
	got := Fields(parse(t, html))
	require.NotNil(t, got.FullName)
	require.Equal(t, "Alice A.", *got.FullName)
}

func TestBioFalsePositiveRejection(t *testing.T) {
	tests := []struct {
		name string
		bio  string
	}{
		{name: "retweet marker", bio: "RT @someone: huge news"},
		{name: "short link", bio: "check this out t.co/abc123"},
		{name: "leading mention", bio: "@alice thanks for sharing"},
		{name: "too long", bio: strings.Repeat("x", maxBioLen+1)},
		{name: "second paragraph", bio: "Builder\n\nAlso this pinned thing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := `<html><body><div data-testid="UserDescription">` + tt.bio + `</div></body></html>`
			got := Fields(parse(t, html))
			require.Nil(t, got.Bio, "tweet-shaped candidate must be rejected")
		})
	}
}

func TestBioChainSkipsToNextHeuristic(t *testing.T) {
	// The specific container is absent; the meta fallback should win.
	html := `<html><head>
		<meta property="og:description" content="Ships small tools."/>
	</head><body></body></html>`
	got := Fields(parse(t, html))
	require.NotNil(t, got.Bio)
	require.Equal(t, "Ships small tools.", *got.Bio)
}

func TestAvatarChainPriority(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "accessible name wins over src pattern",
			html: `<img alt="Opens profile photo" src="https://a/profile_images/x_normal.jpg"/>
				<img src="https://b/profile_images/y_normal.jpg"/>`,
			want: "https://a/profile_images/x_normal.jpg",
		},
		{
			name: "src pattern",
			html: `<img src="https://b/profile_images/y_normal.jpg"/>`,
			want: "https://b/profile_images/y_normal.jpg",
		},
		{
			name: "background image style",
			html: `<div style="background-image: url('https://c/profile_images/z_normal.jpg')"></div>`,
			want: "https://c/profile_images/z_normal.jpg",
		},
		{
			name: "named container descendant",
			html: `<div data-testid="UserAvatar-Container-alice"><img src="https://d/av.jpg"/></div>`,
			want: "https://d/av.jpg",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fields(parse(t, `<html><body>`+tt.html+`</body></html>`))
			require.NotNil(t, got.AvatarURL)
			require.Equal(t, tt.want, *got.AvatarURL)
		})
	}
}

func TestFollowersFromLooseText(t *testing.T) {
	html := `<html><body><span>12.3K followers</span></body></html>`
	got := Fields(parse(t, html))
	require.NotNil(t, got.Followers)
	require.Equal(t, "12.3K", *got.Followers)
}

func TestFollowersLowercaseSuffixNormalized(t *testing.T) {
	html := `<html><body><a href="/bob/followers">3.4k Followers</a></body></html>`
	got := Fields(parse(t, html))
	require.NotNil(t, got.Followers)
	require.Equal(t, "3.4K", *got.Followers)
}
