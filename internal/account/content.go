package account

import "github.com/microcosm-cc/bluemonday"

// remoteContentPolicy allows the formatting markup an email HTML body
// commonly carries while omitting every element or attribute that could
// trigger a remote fetch: "img", "style" (CSS background-image), "link",
// "iframe", "object", and "embed" are simply never added to the allowlist,
// so bluemonday strips them along with their content. This is narrower than
// bluemonday.UGCPolicy: external-content blocking is about network calls,
// not script/XSS hardening, which is a different concern this package does
// not own.
var remoteContentPolicy = newRemoteContentPolicy()

func newRemoteContentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowElements(
		"p", "br", "div", "span", "b", "strong", "i", "em", "u", "s",
		"ul", "ol", "li", "blockquote", "pre", "code",
		"h1", "h2", "h3", "h4", "h5", "h6", "hr",
		"table", "thead", "tbody", "tr", "td", "th",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowElements("a")
	p.RequireNoFollowOnLinks(true)
	return p
}

// SanitizeExternalContent applies a's ExternalContentPolicy to an HTML body
// (§3's ContentPolicy enum): "allow" returns html unchanged, while "block"
// and "ask" both return the sanitized body with every remote-content
// reference stripped. stripped reports whether sanitizing changed the body;
// under "ask" the caller can use it to prompt the user and re-render the
// original html on approval.
func (a *Account) SanitizeExternalContent(html string) (sanitized string, stripped bool) {
	switch a.ExternalContentPolicy {
	case ContentBlock, ContentAsk:
		out := remoteContentPolicy.Sanitize(html)
		return out, out != html
	default:
		return html, false
	}
}
