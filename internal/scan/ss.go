package scan

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/artur282/PortSlayer/pkg/model"
)

// listerArgs asks ss for listening TCP and UDP sockets, numeric, with
// owning processes and without the header line.
var listerArgs = []string{"-tulnpH"}

// ownerRe matches the first ("name",pid=N entry of a users:(...) column.
var ownerRe = regexp.MustCompile(`\("((?:[^"\\]|\\.)*)",pid=(\d+)`)

// parseSS parses ss output line by line. Lines that do not describe a
// listening socket are skipped and logged at debug level.
func parseSS(out string, logger *log.Logger) []model.PortRecord {
	var recs []model.PortRecord
	for _, line := range strings.Split(out, "\n") {
		r, ok := parseSSLine(line)
		if !ok {
			if strings.TrimSpace(line) != "" {
				logger.Debug("skipping unparsable ss line", "line", line)
			}
			continue
		}
		recs = append(recs, r)
	}
	return recs
}

// parseSSLine handles both column layouts ss produces:
//
//	tcp   LISTEN 0 128 0.0.0.0:8080 0.0.0.0:* users:(("node",pid=1234,fd=5))
//	LISTEN 0 4096 *:8069 *:*
//
// The first is printed when more than one socket family is requested.
func parseSSLine(line string) (model.PortRecord, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return model.PortRecord{}, false
	}

	var proto model.Protocol
	i := 0
	if p, err := model.ParseProtocol(fields[0]); err == nil {
		proto = p
		i = 1
	} else {
		switch strings.ToUpper(fields[0]) {
		case "LISTEN":
			proto = model.TCP
		case "UNCONN":
			proto = model.UDP
		default:
			return model.PortRecord{}, false
		}
	}

	// state, recv-q, send-q, local, peer
	if len(fields) < i+5 {
		return model.PortRecord{}, false
	}
	if _, err := strconv.Atoi(fields[i+1]); err != nil {
		return model.PortRecord{}, false
	}
	if _, err := strconv.Atoi(fields[i+2]); err != nil {
		return model.PortRecord{}, false
	}

	addr, port, ok := splitLocal(fields[i+3])
	if !ok {
		return model.PortRecord{}, false
	}

	r := model.PortRecord{
		Protocol:    proto,
		Port:        port,
		Address:     addr,
		ProcessName: model.UnknownProcess,
	}
	if name, pid, ok := parseOwner(strings.Join(fields[i+5:], " ")); ok {
		r.PID = pid
		r.ProcessName = name
	}
	return r, true
}

// splitLocal splits a local address on its last colon and cleans the host
// part for display. Ports outside 1..65535 are rejected.
func splitLocal(local string) (string, int, bool) {
	idx := strings.LastIndex(local, ":")
	if idx < 0 {
		return "", 0, false
	}
	port, err := strconv.Atoi(local[idx+1:])
	if err != nil || port < 1 || port > 65535 {
		return "", 0, false
	}
	return cleanHost(local[:idx]), port, true
}

// cleanHost strips interface zones and IPv6 brackets. ss prints the zone
// after the bracket: "127.0.0.53%lo", "[fe80::1]%eth0".
func cleanHost(host string) string {
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if host == "*" || host == "" {
		return "0.0.0.0"
	}
	return host
}

// parseOwner extracts the first process of a users:((...)) column.
func parseOwner(rest string) (string, int, bool) {
	at := strings.Index(rest, "users:(")
	if at < 0 {
		return "", 0, false
	}
	m := ownerRe.FindStringSubmatch(rest[at:])
	if m == nil {
		return "", 0, false
	}
	pid, err := strconv.Atoi(m[2])
	if err != nil || pid <= 0 {
		return "", 0, false
	}
	name := strings.ReplaceAll(m[1], `\"`, `"`)
	if name == "" {
		name = model.UnknownProcess
	}
	return name, pid, true
}
