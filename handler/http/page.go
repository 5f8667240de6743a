package http

import "fmt"

// Styled fallback pages for browsers which did not ask for JSON.
const (
	pageBanned = `<body style="margin:0;height:100vh;display:grid;place-items:center;background:#0d1117;color:#c9d1d9;font:16px system-ui,sans-serif">` +
		`<div style="width:500px;padding:32px;background:#161b22;border-radius:12px;text-align:center;border:2px solid #30363d">` +
		`<h1 style="color:#f85149;margin:0 0 16px;font-size:32px">403 Blocked</h1>` +
		`<p style="margin:12px 0">Too many requests from your IP.</p>` +
		`<p style="color:#8b949e">Temporarily blocked due to abuse.</p>` +
		`</div></body>`

	pageLimitedFmt = `<body style="margin:0;height:100vh;display:grid;place-items:center;background:#0d1117;color:#c9d1d9;font:16px system-ui,sans-serif">` +
		`<div style="width:500px;padding:32px;background:#161b22;border-radius:12px;text-align:center;border:2px solid #30363d">` +
		`<h1 style="color:#f85149;margin:0 0 16px;font-size:32px">429 Too Many Requests</h1>` +
		`<p style="margin:12px 0">Rate limit exceeded.</p>` +
		`<p style="color:#8b949e">Retry in <strong>%d</strong>s</p>` +
		`</div></body>`
)

func pageLimited(retryAfter int64) string {
	return fmt.Sprintf(pageLimitedFmt, retryAfter)
}
