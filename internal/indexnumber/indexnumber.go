// Package indexnumber allocates and formats student index numbers.
//
// Every function here is pure: callers pass in a snapshot of the school
// settings, the optional class and the roster, and persist the results
// themselves. Counter atomicity across concurrent writers is the storage
// layer's concern.
package indexnumber

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/sma-roster-api/internal/models"
)

// GlobalScope is the scope key used when numbering is school-wide.
const GlobalScope = "global"

// MaxCounter is the largest counter the allocator recognises. Longer numeric
// values, such as national student ids typed in manually, are not counters,
// and every allocated counter plus one still fits a 32-bit column.
const MaxCounter = 999_999_999

// Allocation is the outcome of a single allocation pass.
type Allocation struct {
	Counter     int    `json:"counter"`
	IndexNumber string `json:"index_number"`
	Scope       string `json:"scope"`
	NextCounter int    `json:"next_counter"`
	PerClass    bool   `json:"per_class"`
}

// PerClass reports whether allocation runs in the class scope for the given inputs.
// Per-class numbering without a class falls back to the global scope.
func PerClass(settings models.SchoolSettings, class *models.Class) bool {
	return settings.IndexNumberPerClass && class != nil
}

// Scope returns the storage key of the numbering scope.
func Scope(settings models.SchoolSettings, class *models.Class) string {
	if !PerClass(settings, class) {
		return GlobalScope
	}
	return ClassScope(class)
}

// ClassScope returns the per-class scope key of the class.
func ClassScope(class *models.Class) string {
	if class.ID != "" {
		return "class:" + class.ID
	}
	return "class-name:" + class.Name
}

// ExtractCounter recovers the numeric counter from an index number. It strips
// the global prefix, the class prefix, the class suffix and the global suffix
// in that order and parses the remainder as a base-10 integer. ok is false
// when the remainder is not an integer in [0, MaxCounter]. Stripping is best effort: manually
// typed numbers that collide with the affixes may yield a wrong counter.
func ExtractCounter(indexNumber string, settings models.SchoolSettings, class *models.Class) (counter int, ok bool) {
	rest := indexNumber
	if p := settings.IndexNumberGlobalPrefix; p != "" && strings.HasPrefix(rest, p) {
		rest = rest[len(p):]
	}
	classSuffix := ""
	if class != nil {
		if p := class.IndexNumberPrefix; p != "" && strings.HasPrefix(rest, p) {
			rest = rest[len(p):]
		}
		classSuffix = class.IndexNumberSuffix
	}
	classSuffixStripped := false
	if classSuffix != "" && strings.HasSuffix(rest, classSuffix) {
		rest = rest[:len(rest)-len(classSuffix)]
		classSuffixStripped = true
	}
	if s := settings.IndexNumberGlobalSuffix; s != "" && strings.HasSuffix(rest, s) {
		rest = rest[:len(rest)-len(s)]
	}
	// Format writes the class suffix before the global suffix, so it only
	// becomes visible once the global suffix is gone.
	if !classSuffixStripped && classSuffix != "" && strings.HasSuffix(rest, classSuffix) {
		rest = rest[:len(rest)-len(classSuffix)]
	}
	if rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 || n > MaxCounter {
		return 0, false
	}
	return n, true
}

// NextAvailableCounter returns the smallest safe counter for the scope: one
// past the highest counter observed in the roster, but never below the
// configured next counter of the scope. The class affixes are stripped in
// both modes, so numbers issued under a per-class scheme still count after
// switching to global numbering. In global mode the reading without the
// class affixes is also taken, and the larger of the two wins.
func NextAvailableCounter(students []models.StudentIndexEntry, settings models.SchoolSettings, class *models.Class) int {
	perClass := PerClass(settings, class)

	maxCounter := 0
	observe := func(n int, ok bool) {
		if ok && n > maxCounter {
			maxCounter = n
		}
	}
	for _, student := range students {
		if perClass && !InClass(student, class) {
			continue
		}
		observe(ExtractCounter(student.IndexNumber, settings, class))
		if !perClass && class != nil {
			observe(ExtractCounter(student.IndexNumber, settings, nil))
		}
	}

	configured := settings.IndexNumberGlobalCounter
	if perClass {
		configured = class.IndexNumberCounter
	}
	if configured <= 0 {
		configured = 1
	}

	if maxCounter+1 > configured {
		return maxCounter + 1
	}
	return configured
}

// Format renders the counter with the affixes of the active scheme.
func Format(counter int, settings models.SchoolSettings, class *models.Class) string {
	var b strings.Builder
	b.WriteString(settings.IndexNumberGlobalPrefix)
	perClass := PerClass(settings, class)
	if perClass {
		b.WriteString(class.IndexNumberPrefix)
	}
	if settings.IndexNumberPadding > 0 {
		b.WriteString(fmt.Sprintf("%0*d", settings.IndexNumberPadding, counter))
	} else {
		b.WriteString(strconv.Itoa(counter))
	}
	if perClass {
		b.WriteString(class.IndexNumberSuffix)
	}
	b.WriteString(settings.IndexNumberGlobalSuffix)
	return b.String()
}

// Allocate runs NextAvailableCounter and Format for the given snapshot.
func Allocate(students []models.StudentIndexEntry, settings models.SchoolSettings, class *models.Class) Allocation {
	counter := NextAvailableCounter(students, settings, class)
	return Allocation{
		Counter:     counter,
		IndexNumber: Format(counter, settings, class),
		Scope:       Scope(settings, class),
		NextCounter: counter + 1,
		PerClass:    PerClass(settings, class),
	}
}

// InClass reports whether the roster entry belongs to the class scope. An
// entry numbered in the class scope stays in it after the student moves.
// Other entries carrying a class id are matched by id; legacy entries
// without one are matched by class name.
func InClass(student models.StudentIndexEntry, class *models.Class) bool {
	if class == nil {
		return false
	}
	if student.IndexScope != "" && student.IndexScope == ClassScope(class) {
		return true
	}
	if student.ClassID != nil && *student.ClassID != "" && class.ID != "" {
		return *student.ClassID == class.ID
	}
	return student.ClassName == class.Name
}
