// Copyright (C) 2024 Hash Prospector Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package mixjit compiles a mix.Program directly to amd64 machine code and
// runs it from an executable anonymous page, the same strategy the
// reference implementation uses to score candidates at native speed
// instead of through an interpreter loop.
package mixjit

import (
	"fmt"

	"golang.org/x/sys/cpu"

	"github.com/mixlab/prospector/mix"
)

type asm struct {
	code []byte
}

func (a *asm) u8(b byte)    { a.code = append(a.code, b) }
func (a *asm) bytes(b ...byte) { a.code = append(a.code, b...) }

func (a *asm) imm32(c uint64) {
	a.bytes(byte(c), byte(c>>8), byte(c>>16), byte(c>>24))
}

func (a *asm) imm64(c uint64) {
	a.bytes(byte(c), byte(c>>8), byte(c>>16), byte(c>>24),
		byte(c>>32), byte(c>>40), byte(c>>48), byte(c>>56))
}

// Assemble emits an amd64 function body for p: on entry the argument is
// in EDI/RDI (System V ABI, matching how the generated page is invoked
// through the callJIT32/callJIT64 trampolines), and on return the result
// is in EAX/RAX. The first 9 op kinds reuse the reference implementation
// encodings verbatim (the "stable contract" spec calls out); BSWAP, SHF,
// CLMUL and XROT2 are new encodings this module adds.
func Assemble[W mix.Word](p mix.Program[W]) ([]byte, error) {
	bits := mix.BitsOf[W]()
	if bits != 32 && bits != 64 {
		return nil, fmt.Errorf("mixjit: JIT only supports 32/64-bit words, got %d", bits)
	}
	wide := bits == 64

	var a asm
	if wide {
		a.bytes(0x48, 0x89, 0xf8) // mov rax, rdi
	} else {
		a.bytes(0x89, 0xf8) // mov eax, edi
	}

	for _, op := range p {
		if err := emit(&a, wide, op); err != nil {
			return nil, err
		}
	}
	a.u8(0xc3) // ret
	return a.code, nil
}

func emit[W mix.Word](a *asm, wide bool, op mix.Op[W]) error {
	switch op.Kind {
	case mix.XOR:
		if wide {
			// mov rdi, imm64 ; xor rax, rdi
			a.bytes(0x48, 0xbf)
			a.imm64(op.C1)
			a.bytes(0x48, 0x31, 0xf8)
		} else {
			// xor eax, imm32
			a.u8(0x35)
			a.imm32(op.C1)
		}
	case mix.MUL:
		if wide {
			// mov rdi, imm64 ; imul rax, rdi
			a.bytes(0x48, 0xbf)
			a.imm64(op.C1)
			a.bytes(0x48, 0x0f, 0xaf, 0xc7)
		} else {
			// imul eax, eax, imm32
			a.bytes(0x69, 0xc0)
			a.imm32(op.C1)
		}
	case mix.ADD:
		if wide {
			a.bytes(0x48, 0xbf)
			a.imm64(op.C1)
			a.bytes(0x48, 0x01, 0xf8)
		} else {
			a.u8(0x05)
			a.imm32(op.C1)
		}
	case mix.ROT:
		if wide {
			// rol rax, imm8
			a.bytes(0x48, 0xc1, 0xc0, byte(op.C1))
		} else {
			// rol eax, imm8
			a.bytes(0xc1, 0xc0, byte(op.C1))
		}
	case mix.NOT:
		if wide {
			a.bytes(0x48, 0xf7, 0xd0) // not rax
		} else {
			a.bytes(0xf7, 0xd0) // not eax
		}
	case mix.XORL:
		movEdiEax(a, wide)
		shlEdi(a, wide, byte(op.C1))
		xorEaxEdi(a, wide)
	case mix.XORR:
		movEdiEax(a, wide)
		shrEdi(a, wide, byte(op.C1))
		xorEaxEdi(a, wide)
	case mix.ADDL:
		movEdiEax(a, wide)
		shlEdi(a, wide, byte(op.C1))
		addEaxEdi(a, wide)
	case mix.SUBL:
		movEdiEax(a, wide)
		shlEdi(a, wide, byte(op.C1))
		subEaxEdi(a, wide)
	case mix.BSWAP:
		if wide {
			a.bytes(0x48, 0x0f, 0xc8) // bswap rax
		} else {
			a.bytes(0x0f, 0xc8) // bswap eax
		}
	case mix.SHF:
		emitPermute(a, wide, op.C1)
	case mix.CLMUL:
		emitClmul(a, wide, op.C1)
	case mix.XROT2:
		// mov edi, eax ; rol edi, a ; mov edx, eax ; rol edx, b ; xor edi, edx ; xor eax, edi
		movEdiEax(a, wide)
		rolEdi(a, wide, byte(op.C1))
		movEdxEax(a, wide)
		rolEdx(a, wide, byte(op.C2))
		xorEdiEdx(a, wide)
		xorEaxEdi(a, wide)
	default:
		return fmt.Errorf("mixjit: no amd64 encoding for op kind %s", op.Kind)
	}
	return nil
}

func movEdiEax(a *asm, wide bool) {
	if wide {
		a.bytes(0x48, 0x89, 0xc7)
	} else {
		a.bytes(0x89, 0xc7)
	}
}

func movEdxEax(a *asm, wide bool) {
	if wide {
		a.bytes(0x48, 0x89, 0xc2)
	} else {
		a.bytes(0x89, 0xc2)
	}
}

func shlEdi(a *asm, wide bool, imm8 byte) {
	if wide {
		a.bytes(0x48, 0xc1, 0xe7, imm8)
	} else {
		a.bytes(0xc1, 0xe7, imm8)
	}
}

func shrEdi(a *asm, wide bool, imm8 byte) {
	if wide {
		a.bytes(0x48, 0xc1, 0xef, imm8)
	} else {
		a.bytes(0xc1, 0xef, imm8)
	}
}

func rolEdi(a *asm, wide bool, imm8 byte) {
	if wide {
		a.bytes(0x48, 0xc1, 0xc7, imm8)
	} else {
		a.bytes(0xc1, 0xc7, imm8)
	}
}

func rolEdx(a *asm, wide bool, imm8 byte) {
	if wide {
		a.bytes(0x48, 0xc1, 0xc2, imm8)
	} else {
		a.bytes(0xc1, 0xc2, imm8)
	}
}

func xorEaxEdi(a *asm, wide bool) {
	if wide {
		a.bytes(0x48, 0x31, 0xf8)
	} else {
		a.bytes(0x31, 0xf8)
	}
}

func xorEdiEdx(a *asm, wide bool) {
	if wide {
		a.bytes(0x48, 0x31, 0xd7)
	} else {
		a.bytes(0x31, 0xd7)
	}
}

func addEaxEdi(a *asm, wide bool) {
	if wide {
		a.bytes(0x48, 0x01, 0xf8)
	} else {
		a.bytes(0x01, 0xf8)
	}
}

func subEaxEdi(a *asm, wide bool) {
	if wide {
		a.bytes(0x48, 0x29, 0xf8)
	} else {
		a.bytes(0x29, 0xf8)
	}
}

// emitPermute rearranges the bytes of eax/rax per the packed permutation
// constant c, building the result in edx one byte at a time: isolate byte
// src[i] of the input into edi (copy, shift right, mask), shift it into
// output position i, and fold it into edx with or.
func emitPermute(a *asm, wide bool, c uint64) {
	n := 4
	if wide {
		n = 8
	}
	if wide {
		a.bytes(0x48, 0x31, 0xd2) // xor rdx, rdx
	} else {
		a.bytes(0x31, 0xd2) // xor edx, edx
	}
	for i := 0; i < n; i++ {
		src := int((c >> (8 * i)) & 0xff)
		movEdiEax(a, wide)
		if src != 0 {
			shrEdi(a, wide, byte(8*src))
		}
		// and edi, 0xff (imm32 form: the imm8 form would sign-extend 0xff to -1)
		if wide {
			a.bytes(0x48, 0x81, 0xe7, 0xff, 0x00, 0x00, 0x00)
		} else {
			a.bytes(0x81, 0xe7, 0xff, 0x00, 0x00, 0x00)
		}
		if i != 0 {
			shlEdi(a, wide, byte(8*i))
		}
		// or edx, edi
		if wide {
			a.bytes(0x48, 0x09, 0xfa)
		} else {
			a.bytes(0x09, 0xfa)
		}
	}
	movEaxEdx(a, wide)
}

func movEaxEdx(a *asm, wide bool) {
	if wide {
		a.bytes(0x48, 0x89, 0xd0)
	} else {
		a.bytes(0x89, 0xd0)
	}
}

// emitClmul emits a carry-less (GF(2) polynomial) multiply of eax/rax by
// the compile-time constant c, truncated to the low W bits. When the host
// supports PCLMULQDQ it uses that instruction directly; otherwise it
// falls back to a compile-time-specialized shift/xor chain, one term per
// set bit of c (c is known at JIT time, so zero bits of c cost nothing).
func emitClmul(a *asm, wide bool, c uint64) {
	if cpu.X86.HasPCLMULQDQ {
		emitClmulPCLMULQDQ(a, wide, c)
		return
	}
	if wide {
		a.bytes(0x48, 0x31, 0xd2) // xor rdx, rdx
	} else {
		a.bytes(0x31, 0xd2) // xor edx, edx
	}
	bits := 32
	if wide {
		bits = 64
	}
	for i := 0; i < bits; i++ {
		if (c>>uint(i))&1 == 0 {
			continue
		}
		movEdiEax(a, wide)
		if i != 0 {
			shlEdi(a, wide, byte(i))
		}
		xorEdiEdx(a, wide)
		movEdxEdi(a, wide)
	}
	movEaxEdx(a, wide)
}

func movEdxEdi(a *asm, wide bool) {
	if wide {
		a.bytes(0x48, 0x89, 0xfa)
	} else {
		a.bytes(0x89, 0xfa)
	}
}

// emitClmulPCLMULQDQ moves eax/rax into xmm0, the constant into xmm1 via
// a scratch GPR, issues pclmulqdq, and brings the low W bits back to
// eax/rax. movq (not movd) is used for the 64-bit case so the result is
// already truncated to 64 bits on the way out.
func emitClmulPCLMULQDQ(a *asm, wide bool, c uint64) {
	if wide {
		// movq xmm0, rax
		a.bytes(0x66, 0x48, 0x0f, 0x6e, 0xc0)
		// mov rdi, imm64
		a.bytes(0x48, 0xbf)
		a.imm64(c)
		// movq xmm1, rdi
		a.bytes(0x66, 0x48, 0x0f, 0x6e, 0xcf)
	} else {
		// movd xmm0, eax
		a.bytes(0x66, 0x0f, 0x6e, 0xc0)
		// mov edi, imm32
		a.u8(0xbf)
		a.imm32(c)
		// movd xmm1, edi
		a.bytes(0x66, 0x0f, 0x6e, 0xcf)
	}
	// pclmulqdq xmm0, xmm1, 0x00
	a.bytes(0x66, 0x0f, 0x3a, 0x44, 0xc1, 0x00)
	if wide {
		// movq rax, xmm0
		a.bytes(0x66, 0x48, 0x0f, 0x7e, 0xc0)
	} else {
		// movd eax, xmm0
		a.bytes(0x66, 0x0f, 0x7e, 0xc0)
	}
}
