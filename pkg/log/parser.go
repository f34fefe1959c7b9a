// Package log parses the log lines a transaction produces on the host ledger.
//
// Lines follow the runtime format:
//
//	Program <id> invoke [<depth>]
//	Program log: <message>
//	Program data: <base64> [<base64> ...]
//	Program return: <id> <base64>
//	Program <id> consumed <n> of <m> compute units
//	Program <id> success
//	Program <id> failed: <reason>
//
// The parser tracks the invoke stack so every data line is attributed to the
// program that wrote it, which is what event decoding needs.
//
//	entries := log.NewParser().ProgramData(meta.LogMessages, programID)
//	events, _ := registry.DecodeAll(entries, &programID)
package log

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// LogType is the kind of a log line.
type LogType int

const (
	LogTypeUnknown LogType = iota
	LogTypeInvoke
	LogTypeSuccess
	LogTypeFailed
	LogTypeData
	LogTypeLog
	LogTypeReturn
	LogTypeComputeUnits
)

func (lt LogType) String() string {
	switch lt {
	case LogTypeInvoke:
		return "Invoke"
	case LogTypeSuccess:
		return "Success"
	case LogTypeFailed:
		return "Failed"
	case LogTypeData:
		return "Data"
	case LogTypeLog:
		return "Log"
	case LogTypeReturn:
		return "Return"
	case LogTypeComputeUnits:
		return "ComputeUnits"
	default:
		return "Unknown"
	}
}

// ParsedLog is one classified log line.
type ParsedLog struct {
	Type LogType

	// ProgramID is set on invoke, success, failed, return and compute lines.
	ProgramID solana.PublicKey

	// StackHeight is the invoke depth, 1 for top-level instructions.
	StackHeight int

	// Fields holds the decoded fields of a data line, or the single payload
	// of a return line.
	Fields [][]byte

	// Message is the text of a log line or the reason of a failed line.
	Message string

	ComputeUnits uint64

	RawLog string
}

// LogParser classifies log lines. It is stateless and safe for concurrent use.
type LogParser struct {
	invoke       *regexp.Regexp
	success      *regexp.Regexp
	failed       *regexp.Regexp
	computeUnits *regexp.Regexp
	ret          *regexp.Regexp
}

// NewParser creates a LogParser.
func NewParser() *LogParser {
	return &LogParser{
		invoke:       regexp.MustCompile(`^Program (\S+) invoke \[(\d+)\]$`),
		success:      regexp.MustCompile(`^Program (\S+) success$`),
		failed:       regexp.MustCompile(`^Program (\S+) failed: (.*)$`),
		computeUnits: regexp.MustCompile(`^Program (\S+) consumed (\d+) of \d+ compute units$`),
		ret:          regexp.MustCompile(`^Program return: (\S+) (\S*)$`),
	}
}

const (
	dataPrefix = "Program data: "
	logPrefix  = "Program log: "
)

func decodeFields(s string) [][]byte {
	parts := strings.Fields(s)
	out := make([][]byte, 0, len(parts))
	for _, p := range parts {
		b, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			return nil
		}
		out = append(out, b)
	}
	return out
}

// Parse classifies a single line.
func (p *LogParser) Parse(line string) *ParsedLog {
	result := &ParsedLog{RawLog: line}

	switch {
	case strings.HasPrefix(line, dataPrefix):
		result.Type = LogTypeData
		result.Fields = decodeFields(line[len(dataPrefix):])
		return result
	case strings.HasPrefix(line, logPrefix):
		result.Type = LogTypeLog
		result.Message = line[len(logPrefix):]
		return result
	}

	if m := p.invoke.FindStringSubmatch(line); m != nil {
		result.Type = LogTypeInvoke
		result.ProgramID, _ = solana.PublicKeyFromBase58(m[1])
		result.StackHeight, _ = strconv.Atoi(m[2])
		return result
	}
	if m := p.success.FindStringSubmatch(line); m != nil {
		result.Type = LogTypeSuccess
		result.ProgramID, _ = solana.PublicKeyFromBase58(m[1])
		return result
	}
	if m := p.failed.FindStringSubmatch(line); m != nil {
		result.Type = LogTypeFailed
		result.ProgramID, _ = solana.PublicKeyFromBase58(m[1])
		result.Message = m[2]
		return result
	}
	if m := p.computeUnits.FindStringSubmatch(line); m != nil {
		result.Type = LogTypeComputeUnits
		result.ProgramID, _ = solana.PublicKeyFromBase58(m[1])
		result.ComputeUnits, _ = strconv.ParseUint(m[2], 10, 64)
		return result
	}
	if m := p.ret.FindStringSubmatch(line); m != nil {
		result.Type = LogTypeReturn
		result.ProgramID, _ = solana.PublicKeyFromBase58(m[1])
		if b, err := base64.StdEncoding.DecodeString(m[2]); err == nil {
			result.Fields = [][]byte{b}
		}
		return result
	}
	return result
}

// ParseAll classifies every line and attributes data and log lines to the
// program on top of the invoke stack.
func (p *LogParser) ParseAll(lines []string) []*ParsedLog {
	results := make([]*ParsedLog, 0, len(lines))
	var stack []solana.PublicKey
	for _, line := range lines {
		parsed := p.Parse(line)
		switch parsed.Type {
		case LogTypeInvoke:
			stack = append(stack, parsed.ProgramID)
		case LogTypeSuccess, LogTypeFailed:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case LogTypeData, LogTypeLog:
			if len(stack) > 0 {
				parsed.ProgramID = stack[len(stack)-1]
				parsed.StackHeight = len(stack)
			}
		}
		results = append(results, parsed)
	}
	return results
}

// ProgramData returns the first field of every data line written by
// programID, in log order.
func (p *LogParser) ProgramData(lines []string, programID solana.PublicKey) [][]byte {
	var data [][]byte
	for _, parsed := range p.ParseAll(lines) {
		if parsed.Type == LogTypeData && parsed.ProgramID.Equals(programID) && len(parsed.Fields) > 0 {
			data = append(data, parsed.Fields[0])
		}
	}
	return data
}

// ProgramLogs returns the log messages written by programID.
func (p *LogParser) ProgramLogs(lines []string, programID solana.PublicKey) []string {
	var logs []string
	for _, parsed := range p.ParseAll(lines) {
		if parsed.Type == LogTypeLog && parsed.ProgramID.Equals(programID) {
			logs = append(logs, parsed.Message)
		}
	}
	return logs
}

// Failure returns the reason of the first failed line, if any.
func (p *LogParser) Failure(lines []string) (solana.PublicKey, string, bool) {
	for _, line := range lines {
		if parsed := p.Parse(line); parsed.Type == LogTypeFailed {
			return parsed.ProgramID, parsed.Message, true
		}
	}
	return solana.PublicKey{}, "", false
}

// ComputeUnits sums the units the top-level instructions consumed.
func (p *LogParser) ComputeUnits(lines []string) uint64 {
	var total uint64
	depth := 0
	for _, line := range lines {
		parsed := p.Parse(line)
		switch parsed.Type {
		case LogTypeInvoke:
			depth = parsed.StackHeight
		case LogTypeComputeUnits:
			if depth == 1 {
				total += parsed.ComputeUnits
			}
		case LogTypeSuccess, LogTypeFailed:
			depth--
		}
	}
	return total
}
