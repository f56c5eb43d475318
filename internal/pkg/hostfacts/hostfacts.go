// Package hostfacts probes the running host for the small set of facts the
// installers need to make placement and asset-selection decisions: CPU
// architecture, word size, Linux distribution identity, and root privilege.
// Facts are immutable for the lifetime of the process and computed on demand
// rather than cached at package init, mirroring LinuxInformationDesk's
// classmethod-per-call style in the Python original.
package hostfacts

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Architecture enumerates the CPU architectures the asset and feature
// resolvers know how to reason about.
type Architecture string

const (
	ArchX86_64 Architecture = "x86_64"
	ArchARM64  Architecture = "arm64"
	ArchARMv5  Architecture = "armv5"
	ArchARMv6  Architecture = "armv6"
	ArchARMv7  Architecture = "armv7"
	ArchARMHF  Architecture = "armhf"
	ArchARM32  Architecture = "arm32"
	ArchI386   Architecture = "i386"
	ArchI686   Architecture = "i686"
	ArchPPC64  Architecture = "ppc64"
	ArchS390   Architecture = "s390"
	ArchOther  Architecture = "other"
)

// Bitness is the host's pointer width.
type Bitness string

const (
	Bitness32 Bitness = "32bit"
	Bitness64 Bitness = "64bit"
)

// DistroID enumerates the Linux distribution families the installers
// special-case. Anything else is recorded in HostFacts as DistroUnknown.
type DistroID string

const (
	DistroUbuntu   DistroID = "ubuntu"
	DistroDebian   DistroID = "debian"
	DistroAlpine   DistroID = "alpine"
	DistroRHEL     DistroID = "rhel"
	DistroFedora   DistroID = "fedora"
	DistroOpenSUSE DistroID = "opensuse"
	DistroRaspbian DistroID = "raspbian"
	DistroManjaro  DistroID = "manjaro"
	DistroArch     DistroID = "arch"
	DistroUnknown  DistroID = ""
)

// HostFacts is an immutable snapshot of the facts gathered about the current
// host. Construct with Probe.
type HostFacts struct {
	Arch       Architecture
	Bits       Bitness
	ReleaseID  DistroID
	IDLike     DistroID
	IsRoot     bool
	KernelName string
}

// Probe gathers HostFacts from the running process: machine architecture via
// uname(2) (so results reflect the actual kernel/hardware rather than the
// build target of this binary), pointer width from runtime, and distro
// identity from /etc/os-release.
func Probe() (HostFacts, error) {
	machine, kernel, err := unameMachine()
	if err != nil {
		// Fall back to the Go build target; still useful for tests and
		// non-Linux dev environments running the resolvers in isolation.
		machine = runtime.GOARCH
		kernel = runtime.GOOS
	}

	releaseID, idLike, err := readOSRelease("/etc/os-release")
	if err != nil {
		releaseID, idLike = DistroUnknown, DistroUnknown
	}

	return HostFacts{
		Arch:       classifyArch(machine),
		Bits:       classifyBitness(),
		ReleaseID:  releaseID,
		IDLike:     idLike,
		IsRoot:     IsRoot(),
		KernelName: kernel,
	}, nil
}

// IsRoot reports whether the process may perform privileged filesystem and
// package-manager operations: either it is running as effective uid 0, or it
// was invoked through sudo (SUDO_UID set), matching the Python original's
// has_root_privileges check.
func IsRoot() bool {
	if os.Geteuid() == 0 {
		return true
	}
	_, ok := os.LookupEnv("SUDO_UID")
	return ok
}

func unameMachine() (machine, kernel string, err error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", "", err
	}
	return charsToString(uts.Machine[:]), charsToString(uts.Sysname[:]), nil
}

func charsToString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func classifyArch(machine string) Architecture {
	m := strings.ToLower(machine)
	switch {
	case strings.Contains(m, "x86_64"), strings.Contains(m, "amd64"):
		return ArchX86_64
	case strings.Contains(m, "arm64"), strings.Contains(m, "aarch64"):
		return ArchARM64
	case strings.Contains(m, "armv5"):
		return ArchARMv5
	case strings.Contains(m, "armv6"):
		return ArchARMv6
	case strings.Contains(m, "armv7"):
		return ArchARMv7
	case strings.Contains(m, "armhf"):
		return ArchARMHF
	case strings.Contains(m, "arm32"):
		return ArchARM32
	case strings.Contains(m, "i386"):
		return ArchI386
	case strings.Contains(m, "i686"):
		return ArchI686
	case strings.Contains(m, "ppc"):
		return ArchPPC64
	case strings.Contains(m, "s390"):
		return ArchS390
	default:
		return ArchOther
	}
}

func classifyBitness() Bitness {
	if strconv.IntSize == 64 {
		return Bitness64
	}
	return Bitness32
}

func readOSRelease(path string) (id, idLike DistroID, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		values[parts[0]] = strings.Trim(parts[1], `"`)
	}
	if err := scanner.Err(); err != nil {
		return "", "", err
	}

	id = normalizeDistro(values["ID"])
	idLikeRaw, ok := values["ID_LIKE"]
	if !ok || idLikeRaw == "" {
		idLike = id
	} else {
		// ID_LIKE may list several space-separated families; take the first
		// one nanolayer recognizes.
		idLike = DistroUnknown
		for _, candidate := range strings.Fields(idLikeRaw) {
			if d := normalizeDistro(candidate); d != DistroUnknown {
				idLike = d
				break
			}
		}
		if idLike == DistroUnknown {
			idLike = id
		}
	}
	return id, idLike, nil
}

func normalizeDistro(raw string) DistroID {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "ubuntu"):
		return DistroUbuntu
	case strings.Contains(s, "raspbian"):
		return DistroRaspbian
	case strings.Contains(s, "debian"):
		return DistroDebian
	case strings.Contains(s, "alpine"):
		return DistroAlpine
	case strings.Contains(s, "manjaro"):
		return DistroManjaro
	case strings.Contains(s, "arch"):
		return DistroArch
	case strings.Contains(s, "fedora"):
		return DistroFedora
	case strings.Contains(s, "opensuse"):
		return DistroOpenSUSE
	case strings.Contains(s, "rhel"):
		return DistroRHEL
	default:
		return DistroUnknown
	}
}
