// Package browser implements scraper.Session on a headless Chrome driven
// through the DevTools protocol with go-rod.
//
// Open either launches a local Chrome (optionally a specific binary, with
// extra command-line flags) or connects to an already running one through
// its DevTools control URL. A Session owns exactly one browser and one page;
// Close releases both and removes the launcher's temporary profile.
package browser
