package common

const lineEnding = "\r\n"
