package stream

import (
	"net/url"
	"strings"
)

type EmbedType string

const (
	EmbedTypeNone    EmbedType = "none"
	EmbedTypeKick    EmbedType = "kick"
	EmbedTypeTwitch  EmbedType = "twitch"
	EmbedTypeYouTube EmbedType = "youtube"
	EmbedTypeIframe  EmbedType = "iframe"
)

type EmbedInfo struct {
	Type EmbedType `json:"type"`
	URL  string    `json:"url,omitempty"`
}

// Embed turns a tournament stream link into something the frontend can put in
// an iframe. Twitch players also need a parent query parameter naming the
// embedding site, the frontend appends it.
func Embed(link *string) EmbedInfo {
	if link == nil || strings.TrimSpace(*link) == "" {
		return EmbedInfo{Type: EmbedTypeNone}
	}

	l := strings.TrimSpace(*link)
	u, err := url.Parse(l)
	if err != nil || u.Host == "" {
		// Default to generic iframe and hope for the best
		return EmbedInfo{Type: EmbedTypeIframe, URL: l}
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.Trim(u.Path, "/")
	first, _, _ := strings.Cut(path, "/")

	switch host {
	case "kick.com":
		if first != "" {
			return EmbedInfo{Type: EmbedTypeKick, URL: "https://player.kick.com/" + first}
		}
	case "player.kick.com":
		return EmbedInfo{Type: EmbedTypeKick, URL: l}

	case "twitch.tv", "m.twitch.tv":
		if first != "" && first != "videos" {
			return EmbedInfo{Type: EmbedTypeTwitch, URL: "https://player.twitch.tv/?channel=" + url.QueryEscape(first)}
		}
		if first == "videos" {
			if _, id, ok := strings.Cut(path, "/"); ok && id != "" {
				return EmbedInfo{Type: EmbedTypeTwitch, URL: "https://player.twitch.tv/?video=" + url.QueryEscape(id)}
			}
		}
	case "player.twitch.tv":
		return EmbedInfo{Type: EmbedTypeTwitch, URL: l}

	case "youtube.com", "m.youtube.com":
		switch first {
		case "watch":
			if id := u.Query().Get("v"); id != "" {
				return youTube(id)
			}
		case "embed":
			return EmbedInfo{Type: EmbedTypeYouTube, URL: l}
		case "live", "shorts":
			if _, id, ok := strings.Cut(path, "/"); ok && id != "" {
				return youTube(id)
			}
		}
	case "youtu.be":
		if first != "" {
			return youTube(first)
		}
	}

	return EmbedInfo{Type: EmbedTypeIframe, URL: l}
}

func youTube(videoID string) EmbedInfo {
	return EmbedInfo{Type: EmbedTypeYouTube, URL: "https://www.youtube.com/embed/" + videoID}
}
