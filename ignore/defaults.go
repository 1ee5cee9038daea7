package ignore

// defaultIgnoredDirs are directory names that never contain build input.
// Build output directories are listed so the compiler's own writes cannot
// retrigger a build.
var defaultIgnoredDirs = map[string]struct{}{
	// Version control
	".git": {}, ".svn": {}, ".hg": {},

	// Dependencies
	"node_modules": {}, "bower_components": {}, ".npm": {}, ".yarn": {}, ".pnpm-store": {},

	// Build output and compiler caches
	"www": {}, "dist": {}, ".stencil": {}, "loader": {}, ".cache": {}, ".parcel-cache": {},

	// IDE / Editor
	".idea": {}, ".vscode": {}, ".vs": {},

	// Test output
	"coverage": {}, ".nyc_output": {}, "screenshot": {},
}

// DefaultIgnoredFiles are base-name globs (lowercase) ignored everywhere.
// Images and fonts are not listed: copy tasks usually cover them.
var DefaultIgnoredFiles = []string{
	// Editor swap and backup files
	"*.swp",
	"*.swo",
	"*~",
	".#*",
	"#*#",
	"4913", // vim write probe

	// OS files
	".ds_store",
	"thumbs.db",
	"desktop.ini",

	// Logs
	"*.log",

	// Lock files
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",

	// Source maps and temporary compiler output
	"*.map",
	"*.tmp",
}
