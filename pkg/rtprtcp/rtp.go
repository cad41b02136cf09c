// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

// rtp序号是16位无符号整型，到65535后翻转回0，所以不存在全局的大小关系，只能相对某个参考点比较。
//
// 比较时使用半区假设：两个序号的差值的绝对值如果大于等于半个空间(0x8000)，认为较大的那个其实是翻转前的旧序号。
// 换句话说，同时在途（乱序、未交付）的包不能超过32767个，否则比较结果不可靠。
// 这是一个硬性假设，修改阈值会改变可观察到的行为。

const seqHalfSpace = 0x8000

// SeqPrecedes x是否在y之前，内部处理序号翻转问题
//
// 相等时返回false。差值恰好为半个空间时，两个方向都返回false，调用方不应依赖这种情况下的顺序
//
func SeqPrecedes(x, y uint16) bool {
	diff := int(y) - int(x)
	if diff > 0 {
		return diff < seqHalfSpace
	} else if diff < 0 {
		return diff < -seqHalfSpace
	}
	return false
}

// CompareSeq 比较序号的值，内部处理序号翻转问题，见单元测试中的例子
//
// @return
//   - 0 a和b相等
//   - 1 a大于b
//   - -1 a小于b
func CompareSeq(a, b uint16) int {
	if a == b {
		return 0
	}
	if SeqPrecedes(b, a) {
		return 1
	}
	return -1
}

// SubSeq a减b的值，内部处理序号翻转问题，如果a小于b，则返回负值，见单元测试中的例子
func SubSeq(a, b uint16) int {
	if a == b {
		return 0
	}

	if a > b {
		d := a - b
		if d < 16384 {
			return int(d)
		}
		return int(d) - 65536
	}

	// must be a < b
	d := b - a
	if d < 16384 {
		return -int(d)
	}

	return 65536 - int(d)
}
