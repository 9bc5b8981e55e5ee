// Package content holds the static catalog of gated lead magnets. The wider
// site keeps all of its copy in arrays like this one; the backend only needs
// the magnets because the download route must know which IDs exist and which
// stored object each one unlocks.
package content

type Magnet struct {
	ID          string
	Title       string
	Description string
	ObjectKey   string // key of the deliverable in blob storage
	Filename    string // suggested filename for the browser
}

var magnets = []Magnet{
	{
		ID:          "saas-checklist",
		Title:       "The SaaS Launch Checklist",
		Description: "47 steps from side project to first paying customer.",
		ObjectKey:   "magnets/saas-launch-checklist.pdf",
		Filename:    "saas-launch-checklist.pdf",
	},
	{
		ID:          "go-deploy-guide",
		Title:       "Deploying Go Services Without Kubernetes",
		Description: "A field guide to boring, reliable single-box deploys.",
		ObjectKey:   "magnets/go-deploy-guide.pdf",
		Filename:    "go-deploy-guide.pdf",
	},
	{
		ID:          "indie-stack-notes",
		Title:       "My Indie Hacker Stack, Annotated",
		Description: "Every tool I pay for, what it replaced, and why.",
		ObjectKey:   "magnets/indie-stack-notes.pdf",
		Filename:    "indie-stack-notes.pdf",
	},
}

// MagnetByID looks a magnet up in the catalog.
func MagnetByID(id string) (Magnet, bool) {
	for _, m := range magnets {
		if m.ID == id {
			return m, true
		}
	}
	return Magnet{}, false
}

// Magnets returns a copy of the full catalog.
func Magnets() []Magnet {
	out := make([]Magnet, len(magnets))
	copy(out, magnets)
	return out
}
