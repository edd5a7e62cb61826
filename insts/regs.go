package insts

import (
	"fmt"
	"strconv"
	"strings"
)

var regNames = [32]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

// RegName returns the conventional name of a register, e.g. "$t0".
func RegName(id uint8) string {
	if id > 31 {
		return fmt.Sprintf("$%d", id)
	}
	return "$" + regNames[id]
}

// ParseReg parses "$3", "$t1", "3" or "t1" into a register id.
func ParseReg(s string) (uint8, error) {
	name := strings.TrimPrefix(strings.TrimSpace(s), "$")
	if name == "" {
		return 0, fmt.Errorf("empty register name")
	}

	if n, err := strconv.ParseUint(name, 10, 8); err == nil {
		if n > 31 {
			return 0, fmt.Errorf("register %q out of range", s)
		}
		return uint8(n), nil
	}

	if name == "s8" {
		return 30, nil
	}
	for i, r := range regNames {
		if r == name {
			return uint8(i), nil
		}
	}

	return 0, fmt.Errorf("unknown register %q", s)
}
