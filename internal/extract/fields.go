package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/socialproof/profile-engine/internal/profile"
)

// maxBioLen rejects candidates too long to be a bio; the site caps bios
// well below this, so anything longer is almost certainly a pinned post.
const maxBioLen = 200

var (
	profileImagePath = "profile_images"

	backgroundImageRe = regexp.MustCompile(`background-image:\s*url\(["']?([^"')]+)["']?\)`)
	followersCountRe  = regexp.MustCompile(`([0-9][0-9.,]*\s?[KkMmBb]?)\s*[Ff]ollowers`)
	countTokenRe      = regexp.MustCompile(`^[0-9][0-9.,]*[KMB]?$`)
	shortLinkRe       = regexp.MustCompile(`\bt\.co/`)
)

// nameChain: most specific profile header markup first, falling back to
// page-level metadata.
var nameChain = []Strategy{
	userNameSpan,
	selectorText(`h2[role="heading"] span`),
	ogTitleName,
}

// bioChain candidates still pass through plausibleBio before being
// accepted; the description container is not reliably distinguishable
// from an adjacent pinned post by structure alone.
var bioChain = []Strategy{
	selectorText(`div[data-testid="UserDescription"]`),
	selectorText(`div[data-testid="UserProfileHeader_Description"]`),
	selectorAttr(`meta[property="og:description"]`, "content"),
}

// avatarChain priority: accessible-name marker, then the site's
// profile-image path pattern on an img, then the same pattern in a
// background-image style, then a named container's descendant image.
var avatarChain = []Strategy{
	avatarByAccessibleName,
	avatarBySrcPattern,
	avatarByBackground,
	avatarByContainer,
}

var followersChain = []Strategy{
	followersByAnchor,
	followersByText,
}

// Fields runs every heuristic chain against the document and returns the
// raw extracted record. Any field may be nil.
func Fields(doc *goquery.Document) profile.Extracted {
	return profile.Extracted{
		FullName:  firstMatch(doc, nameChain),
		Bio:       plausibleBio(firstMatch(doc, bioChain)),
		AvatarURL: firstMatch(doc, avatarChain),
		Followers: firstMatch(doc, followersChain),
	}
}

func userNameSpan(doc *goquery.Document) *string {
	var name string
	doc.Find(`div[data-testid="UserName"] span`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text == "" || strings.HasPrefix(text, "@") {
			return true
		}
		name = text
		return false
	})
	if name == "" {
		return nil
	}
	return &name
}

// ogTitleName parses "Full Name (@handle) / Site" style titles.
func ogTitleName(doc *goquery.Document) *string {
	content, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	if !ok {
		return nil
	}
	if idx := strings.Index(content, " (@"); idx > 0 {
		content = content[:idx]
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	return &content
}

// plausibleBio rejects candidates shaped like a tweet rather than a bio:
// retweet markers, short links, leading mentions, excessive length, or a
// second newline-separated paragraph.
func plausibleBio(candidate *string) *string {
	if candidate == nil {
		return nil
	}
	bio := strings.TrimSpace(*candidate)
	switch {
	case bio == "":
		return nil
	case strings.HasPrefix(bio, "RT @"):
		return nil
	case strings.HasPrefix(bio, "@"):
		return nil
	case shortLinkRe.MatchString(bio):
		return nil
	case len(bio) > maxBioLen:
		return nil
	case strings.Contains(bio, "\n\n"):
		return nil
	}
	return &bio
}

func avatarByAccessibleName(doc *goquery.Document) *string {
	var src string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		alt, _ := s.Attr("alt")
		label, _ := s.Attr("aria-label")
		if !strings.Contains(strings.ToLower(alt), "profile photo") &&
			!strings.Contains(strings.ToLower(label), "profile photo") {
			return true
		}
		if v, ok := s.Attr("src"); ok && v != "" {
			src = v
			return false
		}
		return true
	})
	if src == "" {
		return nil
	}
	return &src
}

func avatarBySrcPattern(doc *goquery.Document) *string {
	var src string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr("src")
		if ok && strings.Contains(v, profileImagePath) {
			src = v
			return false
		}
		return true
	})
	if src == "" {
		return nil
	}
	return &src
}

func avatarByBackground(doc *goquery.Document) *string {
	var src string
	doc.Find("[style]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		style, _ := s.Attr("style")
		if !strings.Contains(style, profileImagePath) {
			return true
		}
		if m := backgroundImageRe.FindStringSubmatch(style); len(m) == 2 {
			src = m[1]
			return false
		}
		return true
	})
	if src == "" {
		return nil
	}
	return &src
}

func avatarByContainer(doc *goquery.Document) *string {
	container := doc.Find(`div[data-testid*="UserAvatar-Container"]`).First()
	if container.Length() == 0 {
		return nil
	}
	if v, ok := container.Find("img").First().Attr("src"); ok && v != "" {
		return &v
	}
	var src string
	container.Find("[style]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		style, _ := s.Attr("style")
		if m := backgroundImageRe.FindStringSubmatch(style); len(m) == 2 {
			src = m[1]
			return false
		}
		return true
	})
	if src == "" {
		return nil
	}
	return &src
}

func followersByAnchor(doc *goquery.Document) *string {
	var count string
	doc.Find(`a[href$="/followers"], a[href$="/verified_followers"]`).EachWithBreak(
		func(_ int, s *goquery.Selection) bool {
			if c := reduceToCount(s.Text()); c != nil {
				count = *c
				return false
			}
			return true
		})
	if count == "" {
		return nil
	}
	return &count
}

func followersByText(doc *goquery.Document) *string {
	var count string
	doc.Find("span, div, a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		// Only leaf-ish nodes; container text would match the whole page.
		if s.Children().Length() > 0 {
			return true
		}
		if m := followersCountRe.FindStringSubmatch(s.Text()); len(m) == 2 {
			count = normalizeCount(m[1])
			return false
		}
		return true
	})
	if count == "" {
		return nil
	}
	return &count
}

// reduceToCount extracts just the count token ("1.2K") from link text
// like "1.2K Followers" or a bare "1,234".
func reduceToCount(text string) *string {
	text = strings.TrimSpace(text)
	if m := followersCountRe.FindStringSubmatch(text); len(m) == 2 {
		c := normalizeCount(m[1])
		return &c
	}
	token := strings.TrimSpace(text)
	if countTokenRe.MatchString(strings.ToUpper(token)) {
		c := normalizeCount(token)
		return &c
	}
	return nil
}

func normalizeCount(token string) string {
	token = strings.ReplaceAll(strings.TrimSpace(token), " ", "")
	if token == "" {
		return token
	}
	// Uppercase a trailing magnitude suffix so "1.2k" and "1.2K" agree.
	last := token[len(token)-1]
	if last == 'k' || last == 'm' || last == 'b' {
		token = token[:len(token)-1] + strings.ToUpper(string(last))
	}
	return token
}
