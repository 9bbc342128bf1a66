package config

// DocPathPatterns are path fragments that mark a URL as documentation.
var DocPathPatterns = []string{
	"/docs/",
	"/api/",
	"/guide/",
	"/reference/",
	"/tutorial/",
	"/getting-started/",
	"/handbook/",
	"/manual/",
	"/learn/",
	"/quickstart/",
}

// SkipPathPatterns are path fragments of pages that never hold documentation.
// They are matched against the lowercased path with a trailing slash added.
var SkipPathPatterns = []string{
	"/blog/",
	"/pricing/",
	"/login/",
	"/signup/",
	"/careers/",
	"/about/",
	"/contact/",
	"/legal/",
	"/privacy/",
	"/terms/",
	"/press/",
	"/news/",
}

// SkipExtensions are file suffixes of downloads that are never fetched.
var SkipExtensions = []string{
	".zip", ".tar.gz", ".exe", ".dmg", ".png", ".jpg", ".gif", ".svg", ".ico",
}

// SoftFailureSignals are phrases that mark a login wall or error page
// when they appear near the top of a response body.
var SoftFailureSignals = []string{
	"sign in",
	"access denied",
	"log in to continue",
	"enable javascript",
	"403 forbidden",
	"404 not found",
	"page not found",
	"unauthorized",
	"please log in",
}

// SoftFailureWindow is how many leading characters are searched for SoftFailureSignals.
const SoftFailureWindow = 2000
