package stream

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/pkg/mathx"
)

// Converter 把 CSV 单元格的字符串解析为特征值。
type Converter func(string) (any, error)

// 常用 Converter。
var (
	ParseFloat Converter = func(s string) (any, error) { return strconv.ParseFloat(strings.TrimSpace(s), 64) }
	ParseInt   Converter = func(s string) (any, error) { return strconv.Atoi(strings.TrimSpace(s)) }
	ParseBool  Converter = func(s string) (any, error) { return strconv.ParseBool(strings.TrimSpace(s)) }
)

// CSVOption CSV 数据流配置选项
type CSVOption func(*CSVStream)

// WithTarget 指定目标列，该列会从 x 中移除并作为 y 产出。
func WithTarget(name string) CSVOption {
	return func(c *CSVStream) { c.target = name }
}

// WithConverters 指定各列的解析函数，未指定的列保持字符串。
func WithConverters(converters map[string]Converter) CSVOption {
	return func(c *CSVStream) { c.converters = converters }
}

// WithParseDates 按 time.Parse 的 layout 解析时间列，例如 {"date": "2006-01-02 15:04:05"}。
func WithParseDates(layouts map[string]string) CSVOption {
	return func(c *CSVStream) { c.dates = layouts }
}

// WithDrop 忽略指定的列。
func WithDrop(fields ...string) CSVOption {
	return func(c *CSVStream) { c.drop = fields }
}

// WithFraction 按比例 fraction 随机抽样行，seed 相同则抽样结果相同。
func WithFraction(fraction float64, seed uint64) CSVOption {
	return func(c *CSVStream) {
		c.fraction = fraction
		c.rng = mathx.NewRand(seed)
	}
}

// WithInferTypes 把能解析为数字的单元格转为 float64（指定了 Converter 或时间格式的列除外）。
func WithInferTypes() CSVOption {
	return func(c *CSVStream) { c.infer = true }
}

// WithDelimiter 设置分隔符，默认 ','。
func WithDelimiter(d rune) CSVOption {
	return func(c *CSVStream) { c.reader.Comma = d }
}

// CSVStream 逐行读取 CSV，第一行为表头。
type CSVStream struct {
	reader     *csv.Reader
	closer     io.Closer
	header     []string
	target     string
	converters map[string]Converter
	dates      map[string]string
	drop       []string
	infer      bool
	fraction   float64
	rng        *rand.Rand
	line       int
	done       bool  // 已读完或已关闭
	err        error // 读取失败后重复返回
}

// IterCSV 从 r 读取 CSV。
func IterCSV(r io.Reader, opts ...CSVOption) *CSVStream {
	c := &CSVStream{reader: csv.NewReader(r), fraction: 1}
	c.reader.ReuseRecord = true
	if closer, ok := r.(io.Closer); ok {
		c.closer = closer
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fraction < 1 && c.rng == nil {
		c.rng = mathx.NewRand(0)
	}
	return c
}

// OpenCSV 打开 CSV 文件，".gz" 后缀的文件会自动解压。读到结尾或调用 Close 时关闭文件。
func OpenCSV(path string, opts ...CSVOption) (*CSVStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stream: open %s: %w", path, err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return IterCSV(f, opts...), nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stream: gzip %s: %w", path, err)
	}
	c := IterCSV(gz, opts...)
	c.closer = multiCloser{gz, f}
	return c, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Close 关闭底层文件，之后 Next 返回 io.EOF；重复调用是安全的。
func (c *CSVStream) Close() error {
	c.done = true
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}

func (c *CSVStream) Next(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	if c.err != nil {
		return Sample{}, c.err
	}
	if c.done {
		return Sample{}, io.EOF
	}
	if c.header == nil {
		header, err := c.reader.Read()
		if err != nil {
			return Sample{}, c.fail(err)
		}
		c.header = append([]string(nil), header...)
		c.line++
	}

	record, err := c.reader.Read()
	c.line++
	for err == nil && c.fraction < 1 && c.rng.Float64() > c.fraction {
		record, err = c.reader.Read()
		c.line++
	}
	if err != nil {
		return Sample{}, c.fail(err)
	}
	return c.parse(record)
}

func (c *CSVStream) fail(err error) error {
	closeErr := c.Close()
	if errors.Is(err, io.EOF) {
		if closeErr != nil {
			return closeErr
		}
		return io.EOF
	}
	c.err = fmt.Errorf("stream: csv line %d: %w", c.line, err)
	return c.err
}

func (c *CSVStream) parse(record []string) (Sample, error) {
	x := make(core.Features, len(c.header))
	for i, name := range c.header {
		if i < len(record) {
			x[name] = record[i]
		}
	}
	for _, name := range c.drop {
		delete(x, name)
	}
	for name, convert := range c.converters {
		raw, ok := x[name].(string)
		if !ok {
			return Sample{}, c.invalid(name, "missing column")
		}
		v, err := convert(raw)
		if err != nil {
			return Sample{}, c.invalid(name, err.Error())
		}
		x[name] = v
	}
	for name, layout := range c.dates {
		raw, ok := x[name].(string)
		if !ok {
			return Sample{}, c.invalid(name, "missing column")
		}
		t, err := time.Parse(layout, raw)
		if err != nil {
			return Sample{}, c.invalid(name, err.Error())
		}
		x[name] = t
	}

	if c.infer {
		for name, v := range x {
			if _, ok := c.converters[name]; ok {
				continue
			}
			if _, ok := c.dates[name]; ok {
				continue
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.(string)), 64); err == nil {
				x[name] = f
			}
		}
	}

	var y any
	if c.target != "" {
		y = x[c.target]
		delete(x, c.target)
	}
	return Sample{X: x, Y: y}, nil
}

func (c *CSVStream) invalid(field, reason string) error {
	return core.NewDomainError(core.ModuleStream, core.ErrorCodeInvalidInput,
		fmt.Sprintf("stream: csv line %d field %q: %s", c.line, field, reason))
}
