package feedparser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Daily Engineering</title>
    <link>https://example.com/blog</link>
    <item>
      <title>Release notes</title>
      <link>https://example.com/posts/release-notes</link>
      <guid isPermaLink="false">urn:post:1001</guid>
      <author>alex@example.com (Alex)</author>
      <description>Short summary</description>
      <pubDate>Mon, 13 Jan 2025 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Permalink only</title>
      <guid isPermaLink="true">https://example.com/posts/permalink-only</guid>
      <description>No link element</description>
    </item>
    <item>
      <title>Podcast episode 12</title>
      <guid isPermaLink="false">Buzzsprout-12345</guid>
      <description>Opaque guid, no link</description>
    </item>
    <item>
      <title>Anonymous post</title>
      <description>No guid at all</description>
    </item>
  </channel>
</rss>`

const atomDoc = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Status Updates</title>
  <link href="https://status.example.com/"/>
  <updated>2025-01-13T12:00:00Z</updated>
  <entry>
    <title>Maintenance window</title>
    <link href="https://status.example.com/incidents/42"/>
    <id>tag:status.example.com,2025:42</id>
    <author><name>Ops Team</name></author>
    <content type="html">&lt;p&gt;Scheduled downtime&lt;/p&gt;</content>
    <updated>2025-01-13T12:00:00Z</updated>
  </entry>
</feed>`

func TestParse_RSS(t *testing.T) {
	result := Parse([]byte(rssDoc), "https://example.com/feed.xml")
	require.True(t, result.Success, result.Err)
	require.Equal(t, "Daily Engineering", result.Title)
	require.Equal(t, "https://example.com/blog", result.SiteURL)
	require.Len(t, result.Entries, 4)

	first := result.Entries[0]
	require.Equal(t, "Release notes", first.Title)
	require.Equal(t, "urn:post:1001", first.GUID)
	require.NotNil(t, first.Link)
	require.Equal(t, "https://example.com/posts/release-notes", *first.Link)
	require.Equal(t, "Short summary", first.Content)
	require.NotNil(t, first.Published)
}

func TestParse_Atom(t *testing.T) {
	result := Parse([]byte(atomDoc), "https://status.example.com/feed")
	require.True(t, result.Success, result.Err)
	require.Equal(t, "Status Updates", result.Title)
	require.Len(t, result.Entries, 1)

	entry := result.Entries[0]
	require.Equal(t, "tag:status.example.com,2025:42", entry.GUID)
	require.Equal(t, "Ops Team", entry.Author)
	require.NotNil(t, entry.Link)
	require.Equal(t, "https://status.example.com/incidents/42", *entry.Link)
	require.Contains(t, entry.Content, "Scheduled downtime")
	require.NotNil(t, entry.Updated)
}

// A GUID that is itself an absolute URL becomes the link; an opaque GUID must
// not. Podcast feeds routinely carry GUIDs like "Buzzsprout-12345".
func TestParse_LinkResolution(t *testing.T) {
	result := Parse([]byte(rssDoc), "https://example.com/feed.xml")
	require.True(t, result.Success)

	permalink := result.Entries[1]
	require.NotNil(t, permalink.Link)
	require.Equal(t, "https://example.com/posts/permalink-only", *permalink.Link)

	podcast := result.Entries[2]
	require.Nil(t, podcast.Link)
	require.Equal(t, "Buzzsprout-12345", podcast.GUID)
}

func TestParse_FallbackGUIDIsStable(t *testing.T) {
	first := Parse([]byte(rssDoc), "https://example.com/feed.xml")
	second := Parse([]byte(rssDoc), "https://example.com/feed.xml")
	require.True(t, first.Success)
	require.True(t, second.Success)

	guid := first.Entries[3].GUID
	require.True(t, strings.HasPrefix(guid, "sha256:"), "synthesized guid: %s", guid)
	if diff := cmp.Diff(guid, second.Entries[3].GUID); diff != "" {
		t.Errorf("fallback guid not stable (-first +second):\n%s", diff)
	}
}

func TestParse_Malformed(t *testing.T) {
	result := Parse([]byte("<html><body>not a feed</body></html>"), "https://example.com/feed.xml")
	require.False(t, result.Success)
	require.NotEmpty(t, result.Err)
}

func TestResolveLink(t *testing.T) {
	tests := []struct {
		name string
		link string
		guid string
		want *string
	}{
		{name: "explicit link wins", link: "https://a.example/1", guid: "https://b.example/2", want: strPtr("https://a.example/1")},
		{name: "url guid used without link", link: "", guid: "http://b.example/2", want: strPtr("http://b.example/2")},
		{name: "opaque guid yields nil", link: "", guid: "urn:uuid:abc", want: nil},
		{name: "scheme must be http or https", link: "", guid: "ftp://b.example/2", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveLink(tt.link, tt.guid)
			if tt.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, *tt.want, *got)
		})
	}
}

func strPtr(s string) *string { return &s }
