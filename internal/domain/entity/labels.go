package entity

import (
	"fmt"
	"os"
	"strings"
)

// ClassLabelTable упорядоченный список имён классов, индекс равен classId
type ClassLabelTable []string

// Label возвращает имя класса, если индекс попадает в таблицу
func (t ClassLabelTable) Label(classID int) (string, bool) {
	if classID < 0 || classID >= len(t) {
		return "", false
	}
	return t[classID], true
}

// ParseLabels разбирает таблицу меток: по одной на строку,
// а если строка одна, то через запятую или пробел
func ParseLabels(text string) ClassLabelTable {
	lines := splitClean(text, "\n")
	if len(lines) == 1 {
		lines = splitClean(lines[0], ",")
	}
	if len(lines) == 1 {
		lines = strings.Fields(lines[0])
	}
	return ClassLabelTable(lines)
}

// LoadLabels читает таблицу меток из файла
func LoadLabels(path string) (ClassLabelTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	labels := ParseLabels(string(data))
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

func splitClean(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
