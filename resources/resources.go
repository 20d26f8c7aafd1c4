package resources

import "embed"

// FS bundles migrations, translations and the quiz seed bank into the
// binary so the bot has no runtime file dependencies.
//
//go:embed migrations i18n quiz
var FS embed.FS
