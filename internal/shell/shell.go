// Package shell 实现交互式分类循环
package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/songzhibin97/ipclass"
)

// DefaultPrompt 默认提示符
const DefaultPrompt = "ip> "

// EmptyInputMessage 空输入时的提示
const EmptyInputMessage = "请输入一个 IP 地址，输入 exit、quit 或 q 退出"

var exitTokens = map[string]bool{
	"exit": true,
	"quit": true,
	"q":    true,
}

// Shell 读取用户输入并输出分类结果
type Shell struct {
	classifier *ipclass.Classifier
	out        io.Writer
	prompt     string
}

// New 创建一个交互式循环，classifier 为 nil 时使用默认分类器
func New(classifier *ipclass.Classifier, out io.Writer) *Shell {
	if classifier == nil {
		classifier = ipclass.Default()
	}
	return &Shell{
		classifier: classifier,
		out:        out,
		prompt:     DefaultPrompt,
	}
}

// SetPrompt 设置提示符
func (s *Shell) SetPrompt(prompt string) {
	s.prompt = prompt
}

// Handle 处理一行输入，返回是否应当退出
func (s *Shell) Handle(line string) bool {
	input := strings.ToLower(strings.TrimSpace(line))

	if exitTokens[input] {
		return true
	}

	if input == "" {
		fmt.Fprintln(s.out, EmptyInputMessage)
		return false
	}

	fmt.Fprintln(s.out, s.classifier.Classify(input))
	return false
}

// IsTerminal 判断文件是否为终端
func IsTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// Run 在终端上运行交互式循环，支持历史记录和行编辑
// Ctrl-C 和 EOF 会正常结束循环
func (s *Shell) Run() error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(s.prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return fmt.Errorf("读取输入失败: %w", err)
		}

		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		if s.Handle(input) {
			return nil
		}
	}
}

// RunReader 从 r 逐行读取输入，用于非终端输入
func (s *Shell) RunReader(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if s.Handle(scanner.Text()) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("读取输入失败: %w", err)
	}
	return nil
}
