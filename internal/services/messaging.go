package services

import (
	"context"
	"fmt"
	"strings"

	"ehealthwave-server/internal/apperr"
	"ehealthwave-server/internal/events"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/realtime"
)

// MessagingService manages chat rooms and messages and fans them out to
// connected clients.
type MessagingService struct {
	base
	broadcaster realtime.Broadcaster
	profiles    *ProfileService
}

// roomMembers holds the identity ids of both sides of a room.
type roomMembers struct {
	room          models.ChatRoom
	doctorUserID  string
	patientUserID string
}

func (m *roomMembers) has(userID string) bool {
	return userID == m.doctorUserID || userID == m.patientUserID
}

// other returns the identity id on the opposite side from userID.
func (m *roomMembers) other(userID string) string {
	if userID == m.doctorUserID {
		return m.patientUserID
	}
	return m.doctorUserID
}

func (s *MessagingService) members(ctx context.Context, roomID string) (*roomMembers, error) {
	var room models.ChatRoom
	err := s.conn(ctx).Preload("Doctor").Preload("Patient").First(&room, "id = ?", roomID).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.InvalidInput("Invalid room ID")
		}
		return nil, dbError(err)
	}
	return &roomMembers{
		room:          room,
		doctorUserID:  room.Doctor.UserID,
		patientUserID: room.Patient.UserID,
	}, nil
}

// CreateRoom opens a new room between the calling doctor and a patient.
// Every call creates a fresh room.
func (s *MessagingService) CreateRoom(ctx context.Context, doctor *models.Identity, patientUsername string) (*models.ChatRoom, error) {
	if missing(patientUsername) {
		return nil, apperr.InvalidInput("Missing patient username")
	}
	profile, err := s.profiles.DoctorByUserID(ctx, doctor.ID)
	if err != nil {
		return nil, err
	}
	patient, err := s.profiles.PatientByUsername(ctx, patientUsername)
	if err != nil {
		return nil, err
	}

	room := &models.ChatRoom{DoctorID: profile.ID, PatientID: patient.ID, IsActive: true}
	if err := s.conn(ctx).Create(room).Error; err != nil {
		return nil, dbError(err)
	}

	s.broadcaster.Emit(realtime.Event{
		Event:     realtime.EventChatRoomCreated,
		RoomID:    room.ID,
		Message:   fmt.Sprintf("Chat room created by %s", doctor.Username),
		Timestamp: s.now(),
	})
	s.publish(ctx, events.ChatRoomCreated, map[string]interface{}{
		"room_id":    room.ID,
		"doctor_id":  room.DoctorID,
		"patient_id": room.PatientID,
	})
	return room, nil
}

// SendMessage stores a message from a room participant and relays it to
// everyone who joined the room.
func (s *MessagingService) SendMessage(ctx context.Context, roomID string, sender *models.Identity, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.InvalidInput("Message content is required")
	}
	m, err := s.members(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !m.has(sender.ID) {
		return nil, apperr.Forbidden("You are not a participant of this room")
	}

	msg := &models.Message{
		RoomID:     m.room.ID,
		SenderID:   sender.ID,
		ReceiverID: m.other(sender.ID),
		Body:       body,
		Type:       models.MessageText,
		IsActive:   true,
	}
	if err := s.conn(ctx).Create(msg).Error; err != nil {
		return nil, dbError(err)
	}

	s.broadcaster.EmitToRoom(m.room.ID, realtime.Event{
		Event:          realtime.EventNewMessage,
		RoomID:         m.room.ID,
		Message:        msg.Body,
		SenderID:       sender.ID,
		SenderUsername: sender.Username,
		Timestamp:      msg.CreatedAt,
	})
	s.publish(ctx, events.MessageSent, map[string]interface{}{
		"room_id":     m.room.ID,
		"message_id":  msg.ID,
		"sender_id":   msg.SenderID,
		"receiver_id": msg.ReceiverID,
	})
	return msg, nil
}

// ListMessages returns a room's messages oldest first. Only participants
// may read them.
func (s *MessagingService) ListMessages(ctx context.Context, roomID string, caller *models.Identity, opts ListOptions) ([]models.Message, error) {
	m, err := s.members(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !m.has(caller.ID) {
		return nil, apperr.Forbidden("You are not a participant of this room")
	}
	var out []models.Message
	q := opts.scope(s.conn(ctx).Where("room_id = ?", m.room.ID))
	if err := q.Order("created_at").Find(&out).Error; err != nil {
		return nil, dbError(err)
	}
	return out, nil
}

// ListRooms returns the rooms the caller takes part in, newest first.
func (s *MessagingService) ListRooms(ctx context.Context, caller *models.Identity) ([]models.ChatRoom, error) {
	q := s.conn(ctx)
	switch caller.Role {
	case models.RoleDoctor:
		doctor, err := s.profiles.DoctorByUserID(ctx, caller.ID)
		if err != nil {
			return nil, err
		}
		q = q.Where("doctor_id = ?", doctor.ID)
	case models.RolePatient:
		patient, err := s.profiles.PatientByUserID(ctx, caller.ID)
		if err != nil {
			return nil, err
		}
		q = q.Where("patient_id = ?", patient.ID)
	default:
		return []models.ChatRoom{}, nil
	}
	var rooms []models.ChatRoom
	if err := q.Order("created_at DESC").Find(&rooms).Error; err != nil {
		return nil, dbError(err)
	}
	return rooms, nil
}

// IsParticipant reports whether userID is on either side of the room. An
// unknown room yields false without an error.
func (s *MessagingService) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	m, err := s.members(ctx, roomID)
	if err != nil {
		if apperr.Is(err, apperr.KindInvalidInput) {
			return false, nil
		}
		return false, err
	}
	return m.has(userID), nil
}

var _ realtime.RoomAuthorizer = (*MessagingService)(nil)
