// Package sidecar reads and writes XMP sidecar files. Keywords live as
// rdf:li items inside dc:subject/rdf:Bag; everything else in an existing
// sidecar (develop settings, ratings, custom namespaces) is preserved
// untouched across a write.
package sidecar

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
)

const (
	nsMeta = "adobe:ns:meta/"
	nsRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsDC   = "http://purl.org/dc/elements/1.1/"

	writerTk = "autotag 1.0"
)

// PathFor returns the sidecar path for an image: the extension is replaced,
// never appended. photo.jpg -> photo.xmp, not photo.jpg.xmp.
func PathFor(imagePath string) string {
	ext := filepath.Ext(imagePath)
	return strings.TrimSuffix(imagePath, ext) + ".xmp"
}

// ReadKeywords returns the keywords stored in the image's sidecar. A missing
// sidecar is an empty list, not an error.
func ReadKeywords(imagePath string) ([]string, error) {
	xmpPath := PathFor(imagePath)
	if _, err := os.Stat(xmpPath); err != nil {
		return nil, nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(xmpPath); err != nil {
		return nil, fmt.Errorf("parse sidecar %s: %w", xmpPath, err)
	}
	return keywordsFromDoc(doc), nil
}

// WriteKeywords merges keywords into the image's sidecar, creating it when
// absent. The write is read-merge-write: whatever keywords the file already
// holds stay, and the reported count is how many of the given keywords were
// actually new.
func WriteKeywords(imagePath string, keywords []string) (int, error) {
	xmpPath := PathFor(imagePath)

	doc := etree.NewDocument()
	existing := false
	if _, err := os.Stat(xmpPath); err == nil {
		if err := doc.ReadFromFile(xmpPath); err != nil {
			return 0, fmt.Errorf("parse sidecar %s: %w", xmpPath, err)
		}
		existing = true
	}

	var current []string
	if existing {
		current = keywordsFromDoc(doc)
	}

	merged := current
	added := 0
	have := make(map[string]bool, len(current))
	for _, k := range current {
		have[k] = true
	}
	for _, k := range keywords {
		if k == "" || have[k] {
			continue
		}
		have[k] = true
		merged = append(merged, k)
		added++
	}

	if added == 0 && existing {
		return 0, nil
	}
	if len(merged) == 0 {
		// Nothing to store; do not create an empty sidecar.
		return 0, nil
	}

	if !existing {
		buildSkeleton(doc)
	}
	if err := replaceSubjectBag(doc, merged); err != nil {
		return 0, err
	}

	doc.Indent(2)
	if err := doc.WriteToFile(xmpPath); err != nil {
		return 0, fmt.Errorf("write sidecar %s: %w", xmpPath, err)
	}

	slog.Debug("Sidecar written", "path", xmpPath, "keywords", len(merged), "added", added)
	return added, nil
}

// keywordsFromDoc collects the rdf:li texts under dc:subject.
func keywordsFromDoc(doc *etree.Document) []string {
	var tags []string
	for _, li := range doc.FindElements("//dc:subject/rdf:Bag/rdf:li") {
		text := strings.TrimSpace(li.Text())
		if text != "" {
			tags = append(tags, text)
		}
	}
	return tags
}

// buildSkeleton creates the minimal XMP structure for a fresh sidecar.
func buildSkeleton(doc *etree.Document) {
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	xmpmeta := doc.CreateElement("x:xmpmeta")
	xmpmeta.CreateAttr("xmlns:x", nsMeta)
	xmpmeta.CreateAttr("x:xmptk", writerTk)

	rdf := xmpmeta.CreateElement("rdf:RDF")
	rdf.CreateAttr("xmlns:rdf", nsRDF)

	desc := rdf.CreateElement("rdf:Description")
	desc.CreateAttr("rdf:about", "")
	desc.CreateAttr("xmlns:dc", nsDC)
}

// replaceSubjectBag swaps the dc:subject element for one holding the merged
// keyword list, leaving every sibling element alone.
func replaceSubjectBag(doc *etree.Document, keywords []string) error {
	desc := doc.FindElement("//rdf:Description")
	if desc == nil {
		return fmt.Errorf("invalid sidecar structure: no rdf:Description element")
	}

	for _, subject := range desc.FindElements("dc:subject") {
		desc.RemoveChild(subject)
	}
	if desc.SelectAttr("xmlns:dc") == nil && doc.FindElement("//*[@xmlns:dc]") == nil {
		desc.CreateAttr("xmlns:dc", nsDC)
	}

	subject := desc.CreateElement("dc:subject")
	bag := subject.CreateElement("rdf:Bag")
	for _, k := range keywords {
		li := bag.CreateElement("rdf:li")
		li.SetText(k)
	}
	return nil
}
