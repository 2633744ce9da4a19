package simulator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errUndefinedHeader = errors.New("未定义的命令头")
	errMissingParam    = errors.New("缺少参数")
	errIllegalParam    = errors.New("参数无效")
)

// Callback 处理一条已匹配的命令，返回 nil 表示没有应答
type Callback func(ctx *Context) ([]byte, error)

// Command 是一条 SCPI 命令模式。
// 大写字母为短格式，小写字母可省略；'#' 匹配数字后缀（缺省为 1）；
// '[...]' 包围的节点可省略；以 '?' 结尾的模式只匹配查询。
type Command struct {
	Pattern  string
	Callback Callback
}

type patternNode struct {
	short    string
	long     string
	optional bool
}

type compiledCommand struct {
	nodes    []patternNode
	query    bool
	callback Callback
}

// CommandTable 按注册顺序匹配命令
type CommandTable struct {
	commands []compiledCommand
}

func NewCommandTable(commands []Command) *CommandTable {
	t := &CommandTable{}
	for _, c := range commands {
		t.commands = append(t.commands, compile(c))
	}
	return t
}

func compile(c Command) compiledCommand {
	pattern := c.Pattern
	query := strings.HasSuffix(pattern, "?")
	pattern = strings.TrimSuffix(pattern, "?")

	var nodes []patternNode
	for _, part := range splitPattern(pattern) {
		optional := strings.HasPrefix(part, "[") && strings.HasSuffix(part, "]")
		part = strings.Trim(part, "[]")

		var short strings.Builder
		for _, r := range part {
			if r < 'a' || r > 'z' {
				short.WriteRune(r)
			}
		}
		nodes = append(nodes, patternNode{
			short:    short.String(),
			long:     strings.ToUpper(part),
			optional: optional,
		})
	}

	return compiledCommand{nodes: nodes, query: query, callback: c.Callback}
}

// splitPattern 按 ':' 切分模式，"[:NODE]" 保持为一个可省略节点
func splitPattern(pattern string) []string {
	pattern = strings.TrimPrefix(pattern, ":")

	var (
		parts []string
		cur   strings.Builder
		depth int
	)
	for _, r := range pattern {
		switch {
		case r == '[':
			depth++
			cur.WriteRune(r)
		case r == ']':
			depth--
			cur.WriteRune(r)
		case r == ':' && depth > 0:
			// "[:NODE]" 中的分隔符
		case r == ':':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}

	// "A[:B]" 切分后 "A[B]" 需要拆开
	var out []string
	for _, p := range parts {
		if i := strings.Index(p, "["); i > 0 {
			out = append(out, p[:i], p[i:])
			continue
		}
		out = append(out, p)
	}
	return out
}

// Execute 解析一行命令并调用匹配的处理函数
func (t *CommandTable) Execute(line string, block []byte) ([]byte, error) {
	header, params, _ := strings.Cut(strings.TrimSpace(line), " ")
	header = strings.TrimPrefix(strings.ToUpper(header), ":")

	query := strings.HasSuffix(header, "?")
	header = strings.TrimSuffix(header, "?")
	input := strings.Split(header, ":")

	for _, c := range t.commands {
		if c.query != query {
			continue
		}
		numbers, ok := matchNodes(c.nodes, input, nil)
		if !ok {
			continue
		}

		ctx := &Context{
			header:  line,
			numbers: numbers,
			params:  splitParams(params),
			block:   block,
		}
		return c.callback(ctx)
	}
	return nil, fmt.Errorf("%w: %q", errUndefinedHeader, line)
}

func matchNodes(pattern []patternNode, input []string, numbers []int) ([]int, bool) {
	if len(pattern) == 0 {
		return numbers, len(input) == 0
	}

	node := pattern[0]
	if len(input) > 0 {
		if nums, ok := matchNode(node, input[0]); ok {
			if out, ok := matchNodes(pattern[1:], input[1:], append(numbers, nums...)); ok {
				return out, true
			}
		}
	}
	if node.optional {
		// 省略的节点仍占用数字后缀位置
		defaults := make([]int, strings.Count(node.short, "#"))
		for i := range defaults {
			defaults[i] = 1
		}
		return matchNodes(pattern[1:], input, append(numbers, defaults...))
	}
	return nil, false
}

func matchNode(node patternNode, input string) ([]int, bool) {
	if nums, ok := matchForm(node.short, input); ok {
		return nums, true
	}
	return matchForm(node.long, input)
}

// matchForm 逐字符比较，'#' 吸收连续数字
func matchForm(form, input string) ([]int, bool) {
	var nums []int
	i, j := 0, 0
	for i < len(form) {
		if form[i] == '#' {
			start := j
			for j < len(input) && input[j] >= '0' && input[j] <= '9' {
				j++
			}
			n := 1
			if j > start {
				v, err := strconv.Atoi(input[start:j])
				if err != nil {
					return nil, false
				}
				n = v
			}
			nums = append(nums, n)
			i++
			continue
		}
		if j >= len(input) || input[j] != form[i] {
			return nil, false
		}
		i++
		j++
	}
	return nums, j == len(input)
}

func splitParams(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Context 是一次命令调用的参数游标
type Context struct {
	header  string
	numbers []int
	params  []string
	next    int
	block   []byte
}

// CommandNumber 返回命令头中第 i 个数字后缀
func (c *Context) CommandNumber(i int) int {
	if i < 0 || i >= len(c.numbers) {
		return 1
	}
	return c.numbers[i]
}

func (c *Context) Block() []byte {
	return c.block
}

func (c *Context) param() (string, error) {
	if c.next >= len(c.params) {
		return "", fmt.Errorf("%w: %s", errMissingParam, c.header)
	}
	p := c.params[c.next]
	c.next++
	return p, nil
}

func (c *Context) ParamDouble() (float64, error) {
	p, err := c.param()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(p, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errIllegalParam, p)
	}
	return v, nil
}

// ParamBool 接受 ON/OFF/1/0
func (c *Context) ParamBool() (bool, error) {
	p, err := c.param()
	if err != nil {
		return false, err
	}
	switch strings.ToUpper(p) {
	case "ON", "1":
		return true, nil
	case "OFF", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", errIllegalParam, p)
}

// ParamChoice 返回匹配到的选项（大写）
func (c *Context) ParamChoice(choices ...string) (string, error) {
	p, err := c.param()
	if err != nil {
		return "", err
	}
	p = strings.ToUpper(p)
	for _, choice := range choices {
		if p == choice {
			return choice, nil
		}
	}
	return "", fmt.Errorf("%w: %q 不在 %v 中", errIllegalParam, p, choices)
}
