package models

// ChatRoom pairs a doctor with a patient. A new room is created on every
// request; the active flag is stored but never changed.
type ChatRoom struct {
	BaseModel
	DoctorID  string `gorm:"size:36;not null;index" json:"doctorId"`
	PatientID string `gorm:"size:36;not null;index" json:"patientId"`
	IsActive  bool   `gorm:"default:true" json:"isActive"`

	Doctor  DoctorProfile  `gorm:"foreignKey:DoctorID" json:"-"`
	Patient PatientProfile `gorm:"foreignKey:PatientID" json:"-"`
}

// MessageType enum
type MessageType string

const (
	MessageText MessageType = "text"
	MessageFile MessageType = "file"
)

// Message is one chat line. Sender and receiver are identity ids.
type Message struct {
	BaseModel
	RoomID     string      `gorm:"size:36;not null;index" json:"roomId"`
	SenderID   string      `gorm:"size:36;not null;index" json:"senderId"`
	ReceiverID string      `gorm:"size:36;not null;index" json:"receiverId"`
	Body       string      `gorm:"type:text;not null" json:"message"`
	Type       MessageType `gorm:"size:10;default:text" json:"type"`
	IsRead     bool        `gorm:"default:false" json:"isRead"`
	IsActive   bool        `gorm:"default:true" json:"isActive"`
	IsDeleted  bool        `gorm:"default:false" json:"isDeleted"`

	Room   ChatRoom `gorm:"foreignKey:RoomID" json:"-"`
	Sender Identity `gorm:"foreignKey:SenderID" json:"-"`
}
