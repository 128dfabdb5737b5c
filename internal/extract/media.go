package extract

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/kailas-cloud/postdex/internal/domain/mapping"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
)

// Media scans content for links, images, embeds, shortcodes, hashtags and
// mentions. It emits nothing unless the build enables media indexing.
type Media struct{}

func (Media) Name() string { return NameMedia }
func (Media) Owns() []string {
	return []string{"link", "image", "embed", "shortcode_types", "shortcode", "has", "hashtag", "mention"}
}

// embedTags maps embedding elements to the attribute holding their source.
var embedTags = map[string]string{
	"iframe": "src",
	"embed":  "src",
	"video":  "src",
	"audio":  "src",
	"source": "src",
	"object": "data",
}

// shortcodeFeatures maps shortcodes to the has.* feature they imply.
var shortcodeFeatures = map[string]string{
	"gallery":    "gallery",
	"playlist":   "gallery",
	"video":      "video",
	"wpvideo":    "video",
	"youtube":    "video",
	"vimeo":      "video",
	"audio":      "audio",
	"soundcloud": "audio",
}

func (Media) Extract(_ context.Context, in Input) (Fields, error) {
	if !in.IndexMedia {
		return Fields{}, nil
	}
	content := in.Entity.Content
	links, images, embeds := set{}, set{}, set{}
	has := map[string]int64{}

	scanTags(content, func(t tag) {
		switch t.name {
		case "a":
			if href := strings.TrimSpace(t.attrs["href"]); isURL(href) {
				links.add(href)
			}
		case "img":
			if src := strings.TrimSpace(t.attrs["src"]); src != "" {
				images.add(src)
			}
		default:
			attr, ok := embedTags[t.name]
			if !ok {
				return
			}
			if src := strings.TrimSpace(t.attrs[attr]); src != "" {
				embeds.add(src)
			}
			switch t.name {
			case "video":
				has["video"]++
			case "audio":
				has["audio"]++
			}
		}
	})

	shortcodes := map[string]*shortcode{}
	for _, m := range shortcodeRe.FindAllStringSubmatch(content, -1) {
		if m[1] == "/" {
			continue
		}
		name := strings.ToLower(m[2])
		sc, ok := shortcodes[name]
		if !ok {
			sc = &shortcode{ids: set{}}
			shortcodes[name] = sc
		}
		sc.count++
		for _, idm := range attrIDRe.FindAllStringSubmatch(m[3], -1) {
			for _, id := range strings.Split(idm[1], ",") {
				if id = strings.TrimSpace(id); id != "" {
					sc.ids.add(id)
				}
			}
		}
		if feature, ok := shortcodeFeatures[name]; ok {
			has[feature]++
		}
	}

	text := StripHTML(content)
	hashtags := matchSet(hashtagRe, text, strings.ToLower)
	mentions := matchSet(mentionRe, text, func(s string) string { return strings.TrimRight(s, ".-") })

	f := Fields{}
	if len(links) > 0 {
		f["link"] = links.sorted()
		has["link"] = int64(len(links))
	}
	if len(images) > 0 {
		f["image"] = images.sorted()
		has["image"] = int64(len(images))
	}
	if len(embeds) > 0 {
		f["embed"] = embeds.sorted()
		has["embed"] = int64(len(embeds))
	}
	if len(shortcodes) > 0 {
		types := make([]string, 0, len(shortcodes))
		group := make(map[string]any, len(shortcodes))
		for name, sc := range shortcodes {
			types = append(types, name)
			entry := map[string]any{"count": short(sc.count)}
			if len(sc.ids) > 0 {
				entry["id"] = sc.ids.sorted()
			}
			group[fieldKey(name)] = entry
		}
		sort.Strings(types)
		f["shortcode_types"] = types
		f["shortcode"] = group
		has["shortcode"] = int64(len(shortcodes))
	}
	if len(hashtags) > 0 {
		f["hashtag"] = nameObjects(hashtags.sorted())
		has["hashtag"] = int64(len(hashtags))
	}
	if len(mentions) > 0 {
		f["mention"] = nameObjects(mentions.sorted())
		has["mention"] = int64(len(mentions))
	}
	if len(has) > 0 {
		group := make(map[string]any, len(has))
		for k, n := range has {
			group[k] = short(n)
		}
		f["has"] = group
	}
	return f, nil
}

func short(n int64) int64 { return schema.ClampToWidth(mapping.KindShort, n) }

type shortcode struct {
	count int64
	ids   set
}

type set map[string]struct{}

func (s set) add(v string) { s[v] = struct{}{} }

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "//")
}

func matchSet(re *regexp.Regexp, text string, norm func(string) string) set {
	out := set{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if v := norm(m[1]); v != "" {
			out.add(v)
		}
	}
	return out
}

func nameObjects(names []string) []map[string]any {
	out := make([]map[string]any, len(names))
	for i, n := range names {
		out[i] = map[string]any{"name": n}
	}
	return out
}
