package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// The text format is three header lines followed by one name per line:
//
//	<lastExitMillis>
//	<lastFullScanCompleteMillis>
//	<knownFileCount>
//	<fileName>...
//
// Names are not escaped; blank name lines are ignored.

const headerLines = 3

var errCorrupt = errors.New("corrupt state file")

type state struct {
	meta  Metadata
	known map[string]struct{}
}

func emptyState() state {
	return state{known: map[string]struct{}{}}
}

func decodeState(data []byte) (state, error) {
	st := emptyState()
	if len(bytes.TrimSpace(data)) == 0 {
		return st, nil
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var header [headerLines]int64
	seen := 0
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if seen < headerLines {
			v, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
			if err != nil {
				return emptyState(), fmt.Errorf("%w: header line %d: %v", errCorrupt, seen+1, err)
			}
			header[seen] = v
			seen++
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		st.known[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return emptyState(), fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if seen < headerLines {
		return emptyState(), fmt.Errorf("%w: truncated header", errCorrupt)
	}

	st.meta = Metadata{
		LastExit:             header[0],
		LastFullScanComplete: header[1],
		KnownFileCount:       int(header[2]),
	}
	return st, nil
}

func encodeState(st state) []byte {
	names := make([]string, 0, len(st.known))
	for name := range st.known {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.Grow(32 + len(names)*24)
	buf.WriteString(strconv.FormatInt(st.meta.LastExit, 10))
	buf.WriteByte('\n')
	buf.WriteString(strconv.FormatInt(st.meta.LastFullScanComplete, 10))
	buf.WriteByte('\n')
	buf.WriteString(strconv.Itoa(st.meta.KnownFileCount))
	buf.WriteByte('\n')
	for _, name := range names {
		buf.WriteString(name)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
