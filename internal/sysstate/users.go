package sysstate

// RecordStride is the on-disk byte width of one user-table slot:
// four FieldWidth-byte text fields plus one role/permission byte,
// offsets 0..64 within a 65-byte stride.
const RecordStride = 4*FieldWidth + 1

// EncodeUser packs u into its 65-byte on-disk record: username, first
// name, last name, password (each padded/truncated to FieldWidth), then
// one role byte.
func EncodeUser(u User) [RecordStride]byte {
	var buf [RecordStride]byte
	putField(buf[0:FieldWidth], u.Username)
	putField(buf[FieldWidth:2*FieldWidth], u.FirstName)
	putField(buf[2*FieldWidth:3*FieldWidth], u.LastName)
	putField(buf[3*FieldWidth:4*FieldWidth], u.Password)
	buf[4*FieldWidth] = byte(u.Role)
	return buf
}

// DecodeUser unpacks a 65-byte on-disk record. A record whose username
// field is all zero (username[0]=0) decodes to an empty User.
func DecodeUser(buf []byte) User {
	username := getField(buf[0:FieldWidth])
	if username == "" {
		return User{}
	}
	return User{
		Username:  username,
		FirstName: getField(buf[FieldWidth : 2*FieldWidth]),
		LastName:  getField(buf[2*FieldWidth : 3*FieldWidth]),
		Password:  getField(buf[3*FieldWidth : 4*FieldWidth]),
		Role:      Role(buf[4*FieldWidth]),
	}
}

func putField(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func getField(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}
