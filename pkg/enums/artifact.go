package enums

import "fmt"

// ArtifactKind identifies one of the documents delivered with a license.
type ArtifactKind string

const (
	ArtifactCertificate ArtifactKind = "certificate"
	ArtifactProductFile ArtifactKind = "product_file"
	ArtifactUsageGuide  ArtifactKind = "usage_guide"
)

var validArtifactKinds = []ArtifactKind{
	ArtifactCertificate,
	ArtifactProductFile,
	ArtifactUsageGuide,
}

// String implements fmt.Stringer.
func (a ArtifactKind) String() string {
	return string(a)
}

// IsValid reports whether the value is a known artifact kind.
func (a ArtifactKind) IsValid() bool {
	for _, candidate := range validArtifactKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseArtifactKind converts raw input into ArtifactKind.
func ParseArtifactKind(value string) (ArtifactKind, error) {
	for _, candidate := range validArtifactKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid artifact kind %q", value)
}
