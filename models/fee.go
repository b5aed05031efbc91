package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	FeeNameImg   = "img"
	FeeNameLLM   = "llm"
	FeeNameMusic = "music"
	FeeNameVideo = "video"
	FeeNameClone = "clone"
	FeeNameItem  = "item"
	FeeNameTotal = "total"

	DefaultCurrency = "USD"
)

// Fee 费用记录，可以嵌套子项
type Fee struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Items    []Fee   `json:"items"`
}

func newFee(name string, amount float64) Fee {
	return Fee{Name: name, Amount: amount, Currency: DefaultCurrency, Items: []Fee{}}
}

func ImgFee() Fee   { return newFee(FeeNameImg, 0.4) }
func LLMFee() Fee   { return newFee(FeeNameLLM, 0.002) }
func MusicFee() Fee { return newFee(FeeNameMusic, 1) }
func VideoFee() Fee { return newFee(FeeNameVideo, 3) }
func CloneFee() Fee { return newFee(FeeNameClone, 0.5) }

// ItemFee 任意金额的单项费用，负数按 0 记
func ItemFee(amount float64) Fee {
	if amount < 0 {
		amount = 0
	}
	return newFee(FeeNameItem, amount)
}

// TotalFee 汇总节点：Amount 是子项总额的缓存，不是额外费用
func TotalFee(items ...Fee) Fee {
	fee := newFee(FeeNameTotal, 0)
	fee.Items = append(fee.Items, items...)
	for _, item := range items {
		fee.Amount += item.Total()
	}
	return fee
}

// Total 普通节点 = 自身金额 + 子项合计；汇总节点只算子项，避免重复计数
func (f Fee) Total() float64 {
	sum := 0.0
	for _, item := range f.Items {
		sum += item.Total()
	}
	if f.Name == FeeNameTotal && len(f.Items) > 0 {
		return sum
	}
	return f.Amount + sum
}

// FeeList 以 JSON 形式存储在一列中
type FeeList []Fee

// Sum 列表内所有费用的合计
func (l FeeList) Sum() float64 {
	sum := 0.0
	for _, f := range l {
		sum += f.Total()
	}
	return sum
}

func (l FeeList) Clone() FeeList {
	if l == nil {
		return nil
	}
	out := make(FeeList, len(l))
	for i, f := range l {
		out[i] = f.clone()
	}
	return out
}

func (f Fee) clone() Fee {
	c := f
	c.Items = []Fee(FeeList(f.Items).Clone())
	if c.Items == nil {
		c.Items = []Fee{}
	}
	return c
}

func (l FeeList) Value() (driver.Value, error) {
	if l == nil {
		l = FeeList{}
	}
	return json.Marshal(l)
}

func (l *FeeList) Scan(value interface{}) error {
	if value == nil {
		*l = FeeList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(bytes, l)
}
