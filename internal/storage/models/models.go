package models

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gorm.io/datatypes"
)

// StudentProfile 学生档案主表
type StudentProfile struct {
	ProfileID             string         `gorm:"type:char(36);primaryKey"`
	DisplayName           string         `gorm:"type:varchar(255)"`
	Major                 string         `gorm:"type:varchar(255)"`
	Year                  string         `gorm:"type:varchar(50)"`
	InterestTopicsJSON    datatypes.JSON `gorm:"type:json"`       // [{"topic":"...","weight":0.8},...]
	Embedding             []byte         `gorm:"type:mediumblob"` // 序列化后的兴趣向量
	EmbeddingModelVersion string         `gorm:"type:varchar(100)"`
	CreatedAt             time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt             time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (StudentProfile) TableName() string {
	return "student_profiles"
}

// OpportunityPosting 机会帖子表（活动/实习/科研项目）
type OpportunityPosting struct {
	PostingID             string         `gorm:"type:char(36);primaryKey"`
	Title                 string         `gorm:"type:varchar(255);not null"`
	Description           string         `gorm:"type:text"`
	Category              string         `gorm:"type:varchar(50);index:idx_postings_category"` // EVENT / INTERNSHIP / RESEARCH
	EventDate             *time.Time     `gorm:"type:datetime(6);index:idx_postings_event_date"`
	RequiredMajors        string         `gorm:"type:varchar(512)"` // 逗号分隔，空表示不限
	RequiredYears         string         `gorm:"type:varchar(255)"` // 逗号分隔，空表示不限
	TopicsJSON            datatypes.JSON `gorm:"type:json"`         // [{"topic":"...","weight":1.0},...]
	Embedding             []byte         `gorm:"type:mediumblob"`
	EmbeddingModelVersion string         `gorm:"type:varchar(100)"`
	Status                string         `gorm:"type:varchar(50);default:'ACTIVE';index:idx_postings_status"`
	CreatedByUserID       string         `gorm:"type:char(36)"`
	CreatedAt             time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt             time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (OpportunityPosting) TableName() string {
	return "opportunity_postings"
}

// MatchDigestEntry 周摘要条目表
// 唯一键 (profile_id, posting_id, week_start) 保证同一周重跑时幂等更新
type MatchDigestEntry struct {
	EntryID   uint64    `gorm:"primaryKey;autoIncrement"`
	ProfileID string    `gorm:"type:char(36);not null;index:idx_mde_profile_week,priority:1;uniqueIndex:uq_mde_profile_posting_week,priority:1"`
	PostingID string    `gorm:"type:char(36);not null;uniqueIndex:uq_mde_profile_posting_week,priority:2"`
	WeekStart time.Time `gorm:"type:datetime(6);not null;index:idx_mde_profile_week,priority:2;uniqueIndex:uq_mde_profile_posting_week,priority:3"`
	Score     float64   `gorm:"type:float;not null"`
	Sent      bool      `gorm:"default:false"`
	CreatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Profile *StudentProfile     `gorm:"foreignKey:ProfileID;references:ProfileID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Posting *OpportunityPosting `gorm:"foreignKey:PostingID;references:PostingID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (MatchDigestEntry) TableName() string {
	return "match_digest_entries"
}

// InteractionEvent 交互事件审计表，EventID作为幂等键
type InteractionEvent struct {
	EventID   string    `gorm:"type:char(36);primaryKey"`
	ProfileID string    `gorm:"type:char(36);not null;index:idx_ie_profile_id"`
	PostingID string    `gorm:"type:char(36);not null"`
	Kind      string    `gorm:"type:varchar(50);not null"` // strong_positive / positive / negative
	CreatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (InteractionEvent) TableName() string {
	return "interaction_events"
}

// TopicWeightRecord InterestTopicsJSON / TopicsJSON 列的单条结构
type TopicWeightRecord struct {
	Topic  string  `json:"topic"`
	Weight float64 `json:"weight"`
}

// TopicWeightsToJSON 将主题权重列表序列化为JSON列值
func TopicWeightsToJSON(records []TopicWeightRecord) (datatypes.JSON, error) {
	bytes, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// EmbeddingToBytes 将向量序列化为mediumblob列值（小端float64）
func EmbeddingToBytes(embedding []float64) []byte {
	if len(embedding) == 0 {
		return nil
	}
	buf := make([]byte, 8*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// EmbeddingFromBytes 从mediumblob列值还原向量，长度必须是8的倍数
func EmbeddingFromBytes(data []byte) ([]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("嵌入向量字节长度无效: %d", len(data))
	}
	embedding := make([]float64, len(data)/8)
	for i := range embedding {
		embedding[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return embedding, nil
}

// TopicWeightsFromJSON 从JSON列值解析主题权重列表，空列返回空切片
func TopicWeightsFromJSON(data datatypes.JSON) ([]TopicWeightRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var records []TopicWeightRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
