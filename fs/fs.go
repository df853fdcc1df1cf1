// Package appfs embeds the static files shipped with the binaries.
package appfs

import "embed"

// FS holds the database migrations and the email templates.
//go:embed migrations templates/email/*
var FS embed.FS
