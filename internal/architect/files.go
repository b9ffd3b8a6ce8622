package architect

import (
	"encoding/json"

	"github.com/aether-os/engine/internal/models"
)

const (
	layoutTSX  = `export default function RootLayout({ children }: { children: React.ReactNode }) { return (<html lang="en"><body>{children}</body></html>); }`
	pageTSX    = `export default function Home(){return(<main style={{padding:24,fontFamily:'ui-sans-serif'}}><h1>System Online</h1><p>Fallback build deployed successfully.</p></main>)}`
	nextEnvDTS = "/// <reference types=\"next\" />\n/// <reference types=\"next/image-types/global\" />"
	globalsCSS = "html,body{margin:0;padding:0}*,*:before,*:after{box-sizing:border-box}"
	// frame-ancestors * lets the dashboard embed the deployed app.
	nextConfigJS = `/** Embedded-friendly config */
module.exports = {
  reactStrictMode: true,
  async headers() {
    return [
      {
        source: '/(.*)',
        headers: [
          { key: 'Content-Security-Policy', value: "frame-ancestors *" }
        ],
      },
    ]
  },
}`
)

var tsconfig = map[string]any{
	"compilerOptions": map[string]any{
		"target":                           "ES2020",
		"lib":                              []string{"DOM", "ES2020"},
		"jsx":                              "preserve",
		"moduleResolution":                 "Node",
		"strict":                           true,
		"esModuleInterop":                  true,
		"forceConsistentCasingInFileNames": true,
	},
	"include": []string{"next-env.d.ts", "**/*.ts", "**/*.tsx"},
	"exclude": []string{"node_modules"},
}

func packageJSON(slug string) string {
	if slug == "" {
		slug = "aether-app"
	}
	return prettyJSON(map[string]any{
		"name":    slug,
		"version": "1.0.0",
		"private": true,
		"scripts": map[string]string{"dev": "next dev", "build": "next build", "start": "next start"},
		"dependencies": map[string]string{
			"next":      "14.1.0",
			"react":     "18.2.0",
			"react-dom": "18.2.0",
		},
	})
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	return string(b)
}

// FallbackFiles is the minimal Next.js app deployed when code generation fails.
func FallbackFiles(slug string) []models.File {
	return []models.File{
		{Path: "package.json", Content: packageJSON(slug)},
		{Path: "src/app/layout.tsx", Content: layoutTSX},
		{Path: "src/app/page.tsx", Content: pageTSX},
		{Path: "tsconfig.json", Content: prettyJSON(tsconfig)},
		{Path: "next-env.d.ts", Content: nextEnvDTS},
		{Path: "src/app/globals.css", Content: globalsCSS},
		{Path: "next.config.js", Content: nextConfigJS},
	}
}

// RequiredFiles lists the paths every deployable build must contain, in the
// order defaults are appended.
var RequiredFiles = []string{
	"package.json",
	"next.config.js",
	"next-env.d.ts",
	"tsconfig.json",
	"src/app/layout.tsx",
	"src/app/globals.css",
}

func requiredDefault(path, slug string) string {
	switch path {
	case "package.json":
		return packageJSON(slug)
	case "next.config.js":
		return nextConfigJS
	case "next-env.d.ts":
		return nextEnvDTS
	case "tsconfig.json":
		return prettyJSON(tsconfig)
	case "src/app/layout.tsx":
		return layoutTSX
	default:
		return globalsCSS
	}
}

// EnsureRequiredFiles returns files with a default appended for every
// required path that is missing. Existing entries are never replaced.
func EnsureRequiredFiles(files []models.File, slug string) []models.File {
	have := make(map[string]bool, len(files))
	for _, f := range files {
		have[f.Path] = true
	}
	out := append([]models.File(nil), files...)
	for _, path := range RequiredFiles {
		if !have[path] {
			out = append(out, models.File{Path: path, Content: requiredDefault(path, slug)})
		}
	}
	return out
}
