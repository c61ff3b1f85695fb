// Package metadata derives document attributes (base name, version, year,
// department, "updated" marker) from document identifiers.
//
// The filename convention is a heuristic. Everything downstream depends only
// on the Extractor interface so another source, such as document headers,
// can replace it.
package metadata

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/todmy/doc-conflicts/pkg/models"
)

// Extractor derives metadata for a document id
type Extractor interface {
	Extract(documentID string) models.DocumentMetadata
}

var (
	versionToken = regexp.MustCompile(`^[vV](\d)(\d)$`)
	yearToken    = regexp.MustCompile(`^\d{4}$`)
	digitsToken  = regexp.MustCompile(`^\d+$`)
)

const updatedMarker = "updated"

// departmentRule maps keywords to a department; rules are checked in order
type departmentRule struct {
	department models.Department
	keywords   []string
}

var departmentRules = []departmentRule{
	{models.DepartmentHR, []string{
		"hr", "human_resources", "employee", "employees", "remote_work", "leave",
		"pto", "vacation", "benefits", "hiring", "onboarding", "recruitment",
		"performance", "conduct", "harassment", "parental",
	}},
	{models.DepartmentIT, []string{
		"it", "information_technology", "security", "password", "passwords",
		"data", "software", "device", "devices", "network", "cybersecurity",
		"byod", "access", "email",
	}},
	{models.DepartmentEngineering, []string{
		"engineering", "code", "development", "deployment", "architecture",
		"release", "devops", "incident_response",
	}},
	{models.DepartmentSales, []string{
		"sales", "marketing", "brand", "social_media", "customer", "pricing",
		"advertising",
	}},
	{models.DepartmentFinance, []string{
		"finance", "financial", "expense", "expenses", "travel", "budget",
		"procurement", "invoice", "payroll", "reimbursement",
	}},
	{models.DepartmentLegal, []string{
		"legal", "compliance", "privacy", "gdpr", "contract", "contracts",
		"ethics", "confidentiality", "whistleblower",
	}},
	{models.DepartmentSafety, []string{
		"safety", "health_and_safety", "emergency", "fire", "hazard",
		"workplace_safety", "first_aid",
	}},
}

// FilenameExtractor reads metadata from underscore separated file names
// such as "05_remote_work_policy_v20_2024_updated.md".
type FilenameExtractor struct{}

// NewFilenameExtractor creates a filename based extractor
func NewFilenameExtractor() *FilenameExtractor {
	return &FilenameExtractor{}
}

// Extract parses the document id. It is pure: the same id always yields
// the same metadata.
func (e *FilenameExtractor) Extract(documentID string) models.DocumentMetadata {
	meta := models.DocumentMetadata{
		DocumentID: documentID,
		Department: models.DepartmentGeneral,
	}

	name := stripExtension(filepath.Base(documentID))
	tokens := strings.Split(name, "_")

	base := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		switch {
		case tok == "":
			continue
		case i == 0 && len(tokens) > 1 && digitsToken.MatchString(tok):
			// leading ordering prefix such as "05"
			continue
		case strings.EqualFold(tok, updatedMarker):
			meta.IsSupersededMarker = true
			continue
		}

		if m := versionToken.FindStringSubmatch(tok); m != nil && meta.Version == nil {
			major, _ := strconv.Atoi(m[1])
			minor, _ := strconv.Atoi(m[2])
			meta.Version = &models.Version{Major: major, Minor: minor}
			continue
		}
		if i > 0 && yearToken.MatchString(tok) && meta.Year == nil {
			year, _ := strconv.Atoi(tok)
			meta.Year = &year
			continue
		}

		base = append(base, tok)
	}

	// the marker may also be glued to another word ("policyupdated")
	if !meta.IsSupersededMarker && strings.Contains(strings.ToLower(name), updatedMarker) {
		meta.IsSupersededMarker = true
	}

	meta.BaseName = strings.Join(base, "_")
	meta.Department = classifyDepartment(strings.ToLower(name))

	return meta
}

// stripExtension drops a file extension. A purely numeric suffix such as
// ".0" is kept since it is more likely part of a version than an extension.
func stripExtension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || digitsToken.MatchString(ext[1:]) {
		return name
	}
	return strings.TrimSuffix(name, ext)
}

// classifyDepartment returns the first department whose keyword appears on
// underscore boundaries in name, or General.
func classifyDepartment(name string) models.Department {
	padded := "_" + name + "_"
	for _, rule := range departmentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(padded, "_"+kw+"_") {
				return rule.department
			}
		}
	}
	return models.DepartmentGeneral
}

// ExtractAll computes metadata once for every distinct document in conflicts
func ExtractAll(e Extractor, conflicts []models.DocumentPairConflict) map[string]models.DocumentMetadata {
	result := make(map[string]models.DocumentMetadata)

	for _, c := range conflicts {
		for _, doc := range []string{c.DocA, c.DocB} {
			if _, ok := result[doc]; !ok {
				result[doc] = e.Extract(doc)
			}
		}
	}

	return result
}
