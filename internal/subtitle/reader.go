package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadSRTFile parses the SRT file at path.
func ReadSRTFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SRT file: %w", err)
	}
	defer file.Close()

	return ReadSRT(file)
}

// ReadSRT parses SRT blocks. Timecodes are normalised to the
// HH:MM:SS,mmm form produced by FormatTimestamp.
func ReadSRT(r io.Reader) ([]Entry, error) {
	var (
		entries   []Entry
		current   *Entry
		textLines []string
		lineNum   int
	)

	flush := func() {
		if current != nil && len(textLines) > 0 {
			current.Text = strings.Join(textLines, "\n")
			entries = append(entries, *current)
		}
		current = nil
		textLines = nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		lineNum++
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if current == nil {
			index, err := strconv.Atoi(strings.TrimSpace(line))
			if err != nil {
				return nil, fmt.Errorf("line %d: expected entry index, got %q", lineNum, line)
			}
			current = &Entry{Index: index}
			continue
		}

		if current.Start == "" {
			start, end, err := parseTimingLine(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			current.StartSeconds, current.EndSeconds = start, end
			current.Start, current.End = FormatTimestamp(start), FormatTimestamp(end)
			continue
		}

		textLines = append(textLines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SRT: %w", err)
	}
	flush()

	return entries, nil
}

func parseTimingLine(line string) (float64, float64, error) {
	startStr, endStr, ok := strings.Cut(line, "-->")
	if !ok {
		return 0, 0, fmt.Errorf("expected timing line, got %q", line)
	}
	start, err := ParseTimestamp(strings.TrimSpace(startStr))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid start timestamp: %w", err)
	}
	// cue settings may follow the end timecode
	endFields := strings.Fields(endStr)
	if len(endFields) == 0 {
		return 0, 0, fmt.Errorf("missing end timestamp in %q", line)
	}
	end, err := ParseTimestamp(endFields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid end timestamp: %w", err)
	}
	return start, end, nil
}
